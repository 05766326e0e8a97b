package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"callcenter-platform/internal/audit"
	"callcenter-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultMaxBody = 2 << 20

// Handler serves the provider callback endpoint.
//
// Non-2xx responses are reserved for failures the provider should retry after a fix
// (bad signature, unreadable body). Correlation misses are answered with 200.
type Handler struct {
	Ingest   *Ingestor
	Verifier *Verifier
	Audit    *audit.Service

	// MaxBody caps the accepted request body in bytes.
	MaxBody int64
	Now     func() time.Time
}

func (h Handler) Receive(c *gin.Context) {
	log := logger.FromGin(c)
	now := h.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	limit := h.MaxBody
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil || int64(len(body)) > limit {
		log.Warn("webhook body unreadable", "err", err, "bytes", len(body))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	verified := h.Verifier.Enabled()
	if verified {
		if err := h.Verifier.Verify(SignatureFromHeader(c.Request.Header), body); err != nil {
			log.Warn("webhook signature rejected", "err", err)
			_ = h.Audit.Append(c.Request.Context(), audit.Event{
				Type:      audit.EventTypeWebhookRejected,
				IPAddress: c.ClientIP(),
				Message:   err.Error(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	} else {
		log.Warn("webhook processed without signature verification; set WEBHOOK_SHARED_SECRET")
	}

	p, err := ParsePayload(body)
	if err != nil {
		msg := "invalid JSON"
		if errors.Is(err, ErrMissingConversationID) {
			msg = "conversation_id is required"
		}
		log.Warn("webhook payload rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	out, err := h.Ingest.Ingest(c.Request.Context(), p, body)
	if err != nil {
		log.Error("webhook ingest failed", "conversation_id", p.ConversationID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	if !out.Matched {
		c.JSON(http.StatusOK, gin.H{
			"success":         false,
			"message":         "call not found for conversation_id",
			"conversation_id": p.ConversationID,
			"verified":        verified,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            "transcript saved",
		"call_id":            out.CallID,
		"conversation_id":    out.ConversationID,
		"processing_time_ms": now().Sub(start).Milliseconds(),
		"verified":           verified,
	})
}

// Status is a probe for operators wiring the provider: it reports what is configured.
func (h Handler) Status(c *gin.Context) {
	now := h.Now
	if now == nil {
		now = time.Now
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"endpoint":  c.FullPath(),
		"timestamp": now().UTC().Format(time.RFC3339),
		"configured": gin.H{
			"webhook_secret": h.Verifier.Enabled(),
		},
	})
}
