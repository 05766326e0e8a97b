package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware rejects the request with 429 once the client exhausted the bucket's budget.
// The guarded handler does not run on rejection.
//
// Clients are keyed by gin's ClientIP, so forwarding headers only count when the
// engine trusts the peer (SetTrustedProxies).
func Middleware(l *Limiter, bucket string, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		res := l.Check(c.Request.Context(), bucket+":"+ip, cfg)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests. Please try again later.",
				"retryAfter": res.RetryAfter,
			})
			return
		}
		c.Next()
	}
}
