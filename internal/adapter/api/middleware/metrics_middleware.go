package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"seedbazaar/internal/infrastructure/metrics"
)

// Metrics counts bridge requests by route template and status.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			m.BridgeRequest(c.Request().Method, c.Path(), strconv.Itoa(c.Response().Status))
			return nil
		}
	}
}
