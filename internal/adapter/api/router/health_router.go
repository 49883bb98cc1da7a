package router

import (
	"github.com/labstack/echo/v4"

	"seedbazaar/internal/adapter/api/handler"
)

func SetupHealthRouter(e *echo.Echo, h *handler.Handlers) {
	e.GET("/health", h.Health.CheckHealth)
}
