package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/config"
	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/httpapi"
	"callcenter-platform/internal/provider"
	"callcenter-platform/internal/ratelimit"
	"callcenter-platform/internal/reporting"
	"callcenter-platform/internal/webhook"
	"callcenter-platform/pkg/logger"
	"callcenter-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	// Center timezones must resolve even on hosts without a zoneinfo database.
	_ "time/tzdata"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Webhook.Secret == "" {
		log.Warn("webhook secret not set; provider callbacks are accepted unverified")
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Domain services
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	dir := directory.NewService(directory.NewPostgresRepo(db), cfg.Calls.DefaultTimezone)

	callSvc, err := calls.NewService(calls.NewPostgresRepo(db), dir, auditSvc, calls.Options{
		DailyLimit:      cfg.Calls.DailyLimit,
		DefaultTimezone: cfg.Calls.DefaultTimezone,
	})
	if err != nil {
		log.Error("calls init failed", "err", err)
		os.Exit(1)
	}

	ingestor := webhook.NewIngestor(callSvc, webhook.NewPostgresPending(db), auditSvc)
	callSvc.OnConversationAttached(ingestor.ReplayPending)

	fallbackLoc := calls.ResolveLocation(cfg.Calls.DefaultTimezone, time.UTC)
	reports := reporting.NewService(reporting.NewPostgresRepo(db), callSvc.DailyLimit(), fallbackLoc)

	// Rate limiting
	var (
		store    ratelimit.Store
		memStore *ratelimit.MemoryStore
	)
	switch cfg.RateLimit.Backend {
	case config.RateLimitBackendRedis:
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = ratelimit.NewRedisStore(rdb, "")
	default:
		memStore = ratelimit.NewMemoryStore()
		store = memStore
	}
	limiter := ratelimit.New(store, log)

	// Gin router
	r, err := newEngine(cfg.App.TrustedProxies)
	if err != nil {
		log.Error("router init failed", "err", err)
		os.Exit(1)
	}
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		api: httpapi.Handlers{
			Directory: dir,
			Calls:     callSvc,
			Reporting: reports,
			Audit:     auditSvc,
		},
		webhook: webhook.Handler{
			Ingest:   ingestor,
			Verifier: webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance),
			Audit:    auditSvc,
		},
		session: provider.SessionHandler{
			Provider: provider.NewElevenLabs(cfg.Provider),
			Calls:    callSvc,
			Audit:    auditSvc,
		},
		limiter:     limiter,
		authMW:      auth.RequireAccessToken(authManager),
		profiles:    profileLookup(dir),
		corsOrigins: cfg.App.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return callSvc.RunStaleSweeper(gctx, log, cfg.Calls.SweepInterval, cfg.Calls.StaleAfter)
	})

	if memStore != nil {
		g.Go(func() error {
			return memStore.RunSweeper(gctx, cfg.RateLimit.SweepInterval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		return logger.ShutdownFlush(shutdownCtx, 2*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Error("api stopped with error", "err", err)
		os.Exit(1)
	}
}
