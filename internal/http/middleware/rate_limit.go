package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkgate/internal/app/ratelimit"
	infraPrometheus "github.com/sifan077/linkgate/internal/infra/prometheus"
	"go.uber.org/zap"
)

// RateLimitConfig wires the shared limiter state into the middleware.
type RateLimitConfig struct {
	State *ratelimit.State
	// KeyFunc identifies the client; defaults to ClientIP.
	KeyFunc func(c *fiber.Ctx) string
	// Now defaults to time.Now.
	Now func() time.Time
}

// RateLimit admits or rejects each request against the caller's bucket.
func RateLimit(cfg RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := strconv.Itoa(cfg.State.Config().Limit)

	return func(c *fiber.Ctx) error {
		key := cfg.KeyFunc(c)
		decision := cfg.State.Check(key, cfg.Now())

		c.Set("X-RateLimit-Limit", limit)
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			infraPrometheus.RateLimitRejections.Inc()
			logger.Debug("rate limit exceeded", zap.String("client", key), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		}

		return c.Next()
	}
}
