package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"callcenter-platform/internal/calls"
	"callcenter-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// invalidToken is the only answer for a token that does not resolve, whatever the reason.
var invalidToken = gin.H{"valid": false}

// ValidateToken reports whether a login token may start a call today.
func (h Handlers) ValidateToken(c *gin.Context) {
	token := c.Query("token")
	el, err := h.Calls.Validate(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, calls.ErrInvalidToken) {
			logger.FromGin(c).Error("token validation failed", "token", logger.MaskToken(token), "err", err)
		}
		c.JSON(http.StatusOK, invalidToken)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"canStart":   el.CanStart,
		"callsToday": el.CallsToday,
		"dailyLimit": h.Calls.DailyLimit(),
		"userName":   el.UserName,
		"userId":     el.UserID,
	})
}

type startCallRequest struct {
	LoginToken string `json:"loginToken"`
}

func (h Handlers) StartCall(c *gin.Context) {
	log := logger.FromGin(c)

	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.LoginToken) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "token required", "canStart": false})
		return
	}

	res, err := h.Calls.Start(c.Request.Context(), req.LoginToken)
	switch {
	case err == nil:
	case errors.Is(err, calls.ErrQuotaExceeded):
		c.JSON(http.StatusOK, gin.H{
			"success":    false,
			"error":      "daily limit reached",
			"canStart":   false,
			"callsToday": res.CallsToday,
		})
		return
	case errors.Is(err, calls.ErrInvalidToken), errors.Is(err, calls.ErrCenterUnassigned):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "could not start call", "canStart": false})
		return
	default:
		log.Error("call start failed", "token", logger.MaskToken(req.LoginToken), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not start call", "canStart": false})
		return
	}

	log.Info("call started", "call_id", res.Call.ID, "user_id", res.Call.UserID, "calls_today", res.CallsToday)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"callId":     res.Call.ID,
		"canStart":   true,
		"callsToday": res.CallsToday,
		"userName":   res.UserName,
	})
}

type endCallRequest struct {
	CallID                 string `json:"callId"`
	ProviderConversationID string `json:"providerConversationId"`

	// Older clients send the id under these names.
	ElevenLabsConversationID string `json:"elevenlabsConversationId"`
	ConversationID           string `json:"conversationId"`
}

// conversationID returns the first non-empty conversation id field.
func (r endCallRequest) conversationID() string {
	for _, v := range []string{r.ProviderConversationID, r.ElevenLabsConversationID, r.ConversationID} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (h Handlers) EndCall(c *gin.Context) {
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.CallID) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "callId required"})
		return
	}

	done, err := h.Calls.End(c.Request.Context(), req.CallID, req.conversationID())
	if err != nil {
		h.callFailure(c, err)
		return
	}

	resp := gin.H{"success": true, "callId": done.ID, "status": done.Status}
	if done.DurationSeconds != nil {
		resp["duration"] = *done.DurationSeconds
	}
	if done.EndedAt != nil {
		resp["endedAt"] = done.EndedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

type failCallRequest struct {
	CallID string `json:"callId"`
}

// FailCall lets the client give up a call it could not connect; the slot is returned.
func (h Handlers) FailCall(c *gin.Context) {
	var req failCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.CallID) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "callId required"})
		return
	}
	done, err := h.Calls.MarkFailed(c.Request.Context(), req.CallID)
	if err != nil {
		h.callFailure(c, err)
		return
	}
	resp := gin.H{"success": true, "callId": done.ID, "status": done.Status}
	if done.EndedAt != nil {
		resp["endedAt"] = done.EndedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

type attachRequest struct {
	ConversationID string `json:"conversationId"`
}

func (h Handlers) AttachConversation(c *gin.Context) {
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ConversationID) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "conversationId required"})
		return
	}
	if _, err := h.Calls.AttachConversation(c.Request.Context(), c.Param("id"), req.ConversationID); err != nil {
		h.callFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// callFailure maps call errors for the end-user client: generic messages only.
func (h Handlers) callFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "call not found"})
	case errors.Is(err, calls.ErrAlreadyEnded):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "error": "call already ended"})
	case errors.Is(err, calls.ErrConversationConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "error": "conversation already recorded"})
	default:
		logger.FromGin(c).Error("call request failed", "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}
