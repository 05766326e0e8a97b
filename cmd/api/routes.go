package main

import (
	"context"
	"errors"
	"net/http"

	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/httpapi"
	"callcenter-platform/internal/provider"
	"callcenter-platform/internal/ratelimit"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/webhook"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	api     httpapi.Handlers
	webhook webhook.Handler
	session provider.SessionHandler
	limiter *ratelimit.Limiter

	authMW      gin.HandlerFunc
	profiles    rbac.ProfileLookup
	corsOrigins []string
}

// profileLookup resolves staff roles from the profiles table.
func profileLookup(dir *directory.Service) rbac.ProfileLookup {
	return func(ctx context.Context, profileID string) (string, string, error) {
		p, err := dir.GetProfile(ctx, profileID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return "", "", rbac.ErrUnknownProfile
			}
			return "", "", err
		}
		return p.Role, p.CenterID, nil
	}
}

// newEngine builds the gin engine. Forwarding headers are only believed from
// trustedProxies; with none, the socket peer is the client IP.
func newEngine(trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	return r, nil
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	limit := func(bucket string, cfg ratelimit.Config) gin.HandlerFunc {
		return ratelimit.Middleware(d.limiter, bucket, cfg)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider callbacks (public, signature checked in the handler).
	r.POST("/webhooks/provider", limit(ratelimit.BucketWebhook, ratelimit.Webhook), d.webhook.Receive)
	r.GET("/webhooks/provider", d.webhook.Status)

	v1 := r.Group("/v1")

	// End-user kiosk flow. The login token is the only credential.
	v1.GET("/public/users/validate", limit(ratelimit.BucketTokenValidation, ratelimit.TokenValidation), d.api.ValidateToken)

	callsGroup := v1.Group("/calls")
	{
		callsGroup.POST("/start", limit(ratelimit.BucketCallStart, ratelimit.CallStart), d.api.StartCall)
		callsGroup.POST("/end", limit(ratelimit.BucketCallEnd, ratelimit.CallStart), d.api.EndCall)
		callsGroup.POST("/fail", limit(ratelimit.BucketCallFail, ratelimit.CallStart), d.api.FailCall)
		callsGroup.PATCH("/:id/conversation", limit(ratelimit.BucketCallUpdate, ratelimit.CallStart), d.api.AttachConversation)
	}

	sessionGroup := v1.Group("/provider")
	sessionGroup.Use(provider.CORS(d.corsOrigins))
	{
		sessionGroup.GET("/session", limit(ratelimit.BucketProviderSession, ratelimit.Public), d.session.Get)
		sessionGroup.OPTIONS("/session", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	// Staff dashboard. Managers are scoped to their center inside the handlers.
	staff := v1.Group("/staff")
	staff.Use(d.authMW, rbac.LoadProfile(d.profiles), rbac.RequireAnyRole(rbac.RoleManager))
	{
		staff.GET("/me", d.api.Me)

		staff.GET("/centers", d.api.ListCenters)
		staff.GET("/centers/:id", d.api.GetCenter)
		staff.GET("/centers/:id/summary", d.api.CenterSummary)

		staff.GET("/users", d.api.ListUsers)
		staff.POST("/users", d.api.CreateUser)
		staff.GET("/users/:id", d.api.GetUser)
		staff.PATCH("/users/:id", d.api.UpdateUser)
		staff.DELETE("/users/:id", d.api.DeleteUser)
		staff.POST("/users/:id/token", d.api.RegenerateToken)
		staff.GET("/users/:id/calls", d.api.UserCalls)

		staff.GET("/calls/:id", d.api.GetCall)

		admin := staff.Group("")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/centers", d.api.CreateCenter)
			admin.PATCH("/centers/:id", d.api.UpdateCenter)
			admin.DELETE("/centers/:id", d.api.DeleteCenter)

			admin.GET("/profiles", d.api.ListProfiles)
			admin.POST("/profiles", d.api.CreateProfile)
			admin.PATCH("/profiles/:id", d.api.UpdateProfile)
		}
	}
}
