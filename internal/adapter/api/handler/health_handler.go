package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionStatus reports whether the push connection is up.
type ConnectionStatus interface {
	Connected() bool
}

type HealthHandler struct {
	push ConnectionStatus
}

func NewHealthHandler(push ConnectionStatus) *HealthHandler {
	return &HealthHandler{
		push: push,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "Agent is running",
		"connected": h.push.Connected(),
		"time":      time.Now().Format(time.RFC3339),
	})
}
