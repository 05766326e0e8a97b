package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/calls"
	"callcenter-platform/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CallFailer marks a call failed when its session cannot be set up.
type CallFailer interface {
	Get(ctx context.Context, callID string) (calls.Call, error)
	MarkFailed(ctx context.Context, callID string) (calls.Call, error)
}

// SessionHandler hands a signed connection URL to the browser for a started call.
type SessionHandler struct {
	Provider VoiceProvider
	Calls    CallFailer
	Audit    *audit.Service
}

func (h SessionHandler) Get(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	callID := strings.TrimSpace(c.Query("callId"))
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callId is required"})
		return
	}

	call, err := h.Calls.Get(ctx, callID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		log.Error("load call failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start call"})
		return
	}
	if call.Status != calls.CallStatusStarted {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already ended"})
		return
	}

	sess, err := h.Provider.SignedURL(ctx, SessionRequest{CallID: callID})
	if err != nil {
		log.Error("provider session failed", "provider", h.Provider.Name(), "call_id", callID, "err", err)
		if _, ferr := h.Calls.MarkFailed(ctx, callID); ferr != nil && !errors.Is(ferr, calls.ErrAlreadyEnded) {
			log.Error("mark call failed", "call_id", callID, "err", ferr)
		}
		_ = h.Audit.LogCall(ctx, audit.EventTypeUpstreamFailure, callID, "", "provider session failed", "")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "could not start call"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// CORS allows the browser client to fetch sessions cross-origin. No origins means any origin.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	return cors.New(cfg)
}
