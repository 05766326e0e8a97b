package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/reporting"
	"callcenter-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call internal services, return JSON.
type Handlers struct {
	Directory *directory.Service
	Calls     *calls.Service
	Reporting *reporting.Service
	Audit     *audit.Service
}

// fail maps service errors for staff endpoints. Staff may see validation detail;
// anything unexpected is logged and reported as a generic 500.
func (h Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, directory.ErrInvalidArgument), errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, directory.ErrDuplicate):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, directory.ErrCenterInUse):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "center still has users"})
	case errors.Is(err, calls.ErrAlreadyEnded):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already ended"})
	case errors.Is(err, calls.ErrConversationConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "conversation id conflict"})
	default:
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

func badJSON(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
}

// staffAction records a mutation by the authenticated staff member. Best-effort.
func (h Handlers) staffAction(c *gin.Context, centerID, message string, meta gin.H) {
	ctx := c.Request.Context()
	pid, _ := auth.ProfileID(ctx)
	role, _ := auth.Role(ctx)

	var metadata string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metadata = string(b)
		}
	}
	if err := h.Audit.LogStaffAction(ctx, pid, role, c.ClientIP(), centerID, message, metadata); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
