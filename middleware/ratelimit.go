package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/limiter"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/response"
)

// RateLimit 以客户端 IP 为 key 限流，限流器故障时放行.
func RateLimit(l limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logging.Error(c.Request.Context(), "rate limiter internal error, fail-open applied", "key", key, "error", err)
			c.Next()
			return
		}
		if !allowed {
			logging.Warn(c.Request.Context(), "request rejected by rate limiter", "key", key, "path", c.Request.URL.Path)
			response.ErrorWithStatus(c, http.StatusTooManyRequests, "too many requests", "access rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ConcurrencyLimit 限制同时执行的请求数，等待超过 wait 返回 503.
func ConcurrencyLimit(l *limiter.SemaphoreLimiter, wait time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		acquireCtx := ctx
		if wait > 0 {
			var cancel context.CancelFunc
			acquireCtx, cancel = context.WithTimeout(ctx, wait)
			defer cancel()
		}

		if err := l.Acquire(acquireCtx); err != nil {
			logging.Warn(ctx, "http concurrency limit exceeded", "path", c.Request.URL.Path, "error", err)
			response.ErrorWithStatus(c, http.StatusServiceUnavailable, "service busy", "too many simulations in progress")
			c.Abort()
			return
		}
		defer l.Release()
		c.Next()
	}
}
