package rbac

import (
	"context"
	"errors"
	"net/http"

	"callcenter-platform/internal/auth"
	"callcenter-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrUnknownProfile is returned by a ProfileLookup when the subject has no staff profile.
var ErrUnknownProfile = errors.New("rbac: unknown profile")

// ProfileLookup resolves the role and center of a staff profile.
type ProfileLookup func(ctx context.Context, profileID string) (role, centerID string, err error)

// LoadProfile resolves the authenticated subject's profile and stores role and center in context.
// Must run after auth.RequireAccessToken.
func LoadProfile(lookup ProfileLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, err := auth.ProfileID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "profile required"})
			return
		}
		role, centerID, err := lookup(c.Request.Context(), pid)
		if err != nil {
			if errors.Is(err, ErrUnknownProfile) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
			logger.FromGin(c).Error("profile lookup failed", "profile_id", pid, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !IsValidRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		ctx := auth.WithRole(c.Request.Context(), role, centerID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("role", role)
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CanAccessCenter reports whether the caller may act on data of centerID.
// Managers are scoped to their own center.
func CanAccessCenter(ctx context.Context, centerID string) bool {
	role, err := auth.Role(ctx)
	if err != nil {
		return false
	}
	if IsAdmin(role) {
		return true
	}
	own := auth.CenterID(ctx)
	return own != "" && own == centerID
}
