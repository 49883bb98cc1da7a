package router

import (
	"github.com/labstack/echo/v4"

	"seedbazaar/internal/adapter/api/handler"
	"seedbazaar/internal/adapter/api/middleware"
)

func SetupChatRouter(g *echo.Group, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware) {
	chat := g.Group("/chat", authMiddleware.RequireSession)

	chat.GET("/conversations", h.Chat.GetConversations)
	// single message straight from the backend
	chat.GET("/messages/:id", h.Chat.GetMessage)
	chat.GET("/:partnerId/messages", h.Chat.GetMessages)
	chat.POST("/:partnerId/messages", h.Chat.SendMessage)
}
