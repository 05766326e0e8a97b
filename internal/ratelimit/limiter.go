package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Config is a request budget: at most MaxRequests per fixed Window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Result of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
	// RetryAfter is whole seconds until the window resets; 0 when allowed.
	RetryAfter int
}

// Store counts hits per key in fixed windows.
// Hit returns the count including this hit and when the current window ends.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (count int, resetAt time.Time, err error)
}

// Limiter applies request budgets over a Store. Check never fails: store errors
// are logged and the request is allowed.
type Limiter struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func New(store Store, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{store: store, log: log, now: time.Now}
}

func (l *Limiter) Check(ctx context.Context, identifier string, cfg Config) Result {
	now := l.now()
	if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return Result{Allowed: true, ResetTime: now}
	}

	count, resetAt, err := l.store.Hit(ctx, identifier, cfg.Window, now)
	if err != nil {
		l.log.Warn("rate limit store failed, allowing request", "key", identifier, "err", err)
		return Result{Allowed: true, Remaining: cfg.MaxRequests, ResetTime: now.Add(cfg.Window)}
	}
	return evaluate(count, resetAt, now, cfg)
}

func evaluate(count int, resetAt, now time.Time, cfg Config) Result {
	res := Result{
		Allowed:   count <= cfg.MaxRequests,
		Remaining: cfg.MaxRequests - count,
		ResetTime: resetAt,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = int(math.Ceil(resetAt.Sub(now).Seconds()))
		if res.RetryAfter < 1 {
			res.RetryAfter = 1
		}
	}
	return res
}
