package middleware

import (
	"fmt"
	"math"

	"github.com/labstack/echo/v4"

	"seedbazaar/internal/infrastructure/ratelimit"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
	"seedbazaar/pkg/response"
)

// RateLimit throttles bridge calls per client IP with the given action's
// bucket.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, wait := limiter.Allow(ip, action)
			if !allowed {
				logger.Info("RATE LIMIT: blocked %s %s from %s (retry in %v)", c.Request().Method, c.Path(), ip, wait)
				c.Response().Header().Set("Retry-After", fmt.Sprint(int(math.Ceil(wait.Seconds()))))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}

			return next(c)
		}
	}
}
