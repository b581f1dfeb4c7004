package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/server"
)

const rateLimitWindow = time.Minute

// RateLimitMiddleware counts requests per client IP in fixed one-minute
// windows kept in Redis. All replicas share the counters.
type RateLimitMiddleware struct {
	server *server.Server
	limit  int
	now    func() time.Time
}

func NewRateLimitMiddleware(s *server.Server) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		server: s,
		limit:  s.Config.Server.RateLimitPerMinute,
		now:    time.Now,
	}
}

func rateLimitKey(ip string, window time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", ip, window.Unix())
}

// hit counts one request and returns the count for the current window.
func (r *RateLimitMiddleware) hit(ctx context.Context, ip string, window time.Time) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.server.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := rateLimitKey(ip, window)
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rateLimitWindow+time.Second)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Limit rejects requests over the per-minute limit with 429. When Redis
// is unreachable requests are let through.
func (r *RateLimitMiddleware) Limit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if r.limit <= 0 || r.server.Redis == nil {
			return next
		}
		return func(c echo.Context) error {
			window := r.now().Truncate(rateLimitWindow)
			count, err := r.hit(c.Request().Context(), c.RealIP(), window)
			if err != nil {
				GetLogger(c).Warn().Err(err).Msg("rate limiter unavailable")
				return next(c)
			}

			remaining := int64(r.limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(r.limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(r.limit) {
				retryAfter := window.Add(rateLimitWindow).Sub(r.now())
				h.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				r.RecordRateLimitHit(c.Path())
				return errs.NewTooManyRequestsError("Too many requests, slow down and try again shortly")
			}
			return next(c)
		}
	}
}

func (r *RateLimitMiddleware) RecordRateLimitHit(endpoint string) {
	if r.server.Metrics != nil {
		r.server.Metrics.RateLimited.Inc()
	}
	if r.server.LoggerService != nil && r.server.LoggerService.GetApplication() != nil {
		r.server.LoggerService.GetApplication().RecordCustomEvent("RateLimitHit", map[string]interface{}{
			"endpoint": endpoint,
		})
	}
}
