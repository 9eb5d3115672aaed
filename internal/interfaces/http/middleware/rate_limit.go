// internal/interfaces/http/middleware/rate_limit.go
package middleware

import (
	"context"
	"strconv"
	"time"

	redisdb "github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/redis"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const rateLimitWindow = time.Minute

// RateLimit implements a per IP fixed window limit in Redis.
// Requests are allowed through when Redis is unavailable.
func RateLimit(limit int, rdb redis.Cmdable, logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || rdb == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		key := "rate_limit:" + c.ClientIP()
		allowed, remaining, err := redisdb.FixedWindowAllow(ctx, rdb, key, limit, rateLimitWindow)
		if err != nil {
			logger.WithError(err).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			ttl, err := rdb.TTL(ctx, key).Result()
			if err != nil || ttl <= 0 {
				ttl = rateLimitWindow
			}
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
			RespondError(c, apperrors.New(apperrors.CodeRateLimit, "too many requests"))
			return
		}

		c.Next()
	}
}
