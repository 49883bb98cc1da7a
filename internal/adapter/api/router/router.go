package router

import (
	"github.com/labstack/echo/v4"

	"seedbazaar/internal/adapter/api/handler"
	"seedbazaar/internal/adapter/api/middleware"
	"seedbazaar/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	v1 := e.Group("/v1")
	v1.Use(middleware.RateLimit(limiter, ratelimit.ActionBridge))

	SetupHealthRouter(e, h)
	SetupSessionRouter(v1, h)
	SetupBadgeRouter(v1, h, authMiddleware)
	SetupNotificationRouter(v1, h, authMiddleware)
	SetupScreenRouter(v1, h, authMiddleware)
	SetupChatRouter(v1, h, authMiddleware)

	// the stream is long lived, keep it out of the rate limited group
	e.GET("/v1/events", h.Events.Stream)
}

func SetupSessionRouter(g *echo.Group, h *handler.Handlers) {
	g.GET("/session", h.Session.GetSession)
	g.POST("/session", h.Session.Login)
	g.DELETE("/session", h.Session.Logout)
}

func SetupBadgeRouter(g *echo.Group, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware) {
	badges := g.Group("/badges", authMiddleware.RequireSession)
	badges.GET("", h.Badge.GetBadges)
	badges.DELETE("", h.Badge.ClearAllBadges)
	badges.POST("/:category/clear", h.Badge.ClearBadge)
	badges.POST("/:category/decrement", h.Badge.DecrementBadge)
}

func SetupNotificationRouter(g *echo.Group, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware) {
	notifications := g.Group("/notifications", authMiddleware.RequireSession)
	notifications.GET("", h.Notification.List)
	notifications.POST("/read", h.Notification.MarkAllRead)
	notifications.POST("/requests", h.Notification.CreateRequest)
	notifications.DELETE("", h.Notification.ClearAll)
	notifications.DELETE("/:id", h.Notification.Clear)
	notifications.POST("/:id/respond", h.Notification.Respond)
}

func SetupScreenRouter(g *echo.Group, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware) {
	screens := g.Group("/screens", authMiddleware.RequireSession)
	screens.GET("/:screen", h.Screen.State)
	screens.POST("/:screen/focus", h.Screen.Focus)
	screens.POST("/:screen/blur", h.Screen.Blur)
	screens.POST("/:screen/refresh", h.Screen.Refresh)
}
