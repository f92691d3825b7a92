package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/commxr/commxr-go/internal/application/services"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware admits requests per user and route pattern. It must run
// after AuthMiddleware; anonymous requests pass through unlimited.
func RateLimitMiddleware(limiter services.RateLimiter, policy services.RateLimitPolicy, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.Next()
			return
		}

		route := services.NormalizeRoute(c.FullPath())
		if route == "" {
			route = c.Request.URL.Path
		}
		limit := policy.LimitFor(c.Request.Method + " " + route)
		key := services.RateLimitKey(identity.UserID, c.Request.Method, route)

		result := limiter.CheckAndIncrement(c.Request.Context(), key, limit, policy.Window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.RetryAfterSeconds(time.Now().Unix())
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			logger.RateLimit().Warn("Rate limit exceeded",
				"user", logging.MaskUserID(identity.UserID), "route", c.Request.Method+" "+route, "limit", limit)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
