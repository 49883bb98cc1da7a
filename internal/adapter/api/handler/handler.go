package handler

import (
	"seedbazaar/internal/app"
)

// Handlers groups every bridge handler built over one App.
type Handlers struct {
	Health       *HealthHandler
	Session      *SessionHandler
	Badge        *BadgeHandler
	Notification *NotificationHandler
	Screen       *ScreenHandler
	Chat         *ChatHandler
	Events       *EventsHandler
}

func Setup(a *app.App) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(a),
		Session:      NewSessionHandler(a.Session, a),
		Badge:        NewBadgeHandler(a.BadgeUC),
		Notification: NewNotificationHandler(a.Notifications),
		Screen:       NewScreenHandler(a.ScreenUC),
		Chat:         NewChatHandler(a.Chat),
		Events:       NewEventsHandler(a.Hub),
	}
}
