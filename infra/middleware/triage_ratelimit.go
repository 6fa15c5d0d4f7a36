package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// WidgetRateLimit throttles public submissions per project and client IP.
func WidgetRateLimit(limiter Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		key := "widget:" + c.Params("projectID") + ":" + c.IP()
		ok, retryAfter := limiter.Allow(c.UserContext(), key)
		if ok {
			return c.Next()
		}

		secs := int(math.Ceil(retryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
		return apperr.ErrRateLimited.WithDetail("retry_after", secs)
	}
}
