package repository

import (
	"context"

	"seedbazaar/internal/domain/entity"
)

// NotificationRepository is the backend's view of order request
// notifications. Returned entities carry no category; callers derive it.
type NotificationRepository interface {
	Received(ctx context.Context) ([]entity.Notification, error)
	Sent(ctx context.Context) ([]entity.Notification, error)
	ForUser(ctx context.Context, page, size int) ([]entity.Notification, error)
	Respond(ctx context.Context, id int64, status entity.NotificationStatus) error
	Create(ctx context.Context, req entity.OrderRequest) error
	NotificationClearer
}

type NotificationClearer interface {
	MarkCleared(ctx context.Context, id int64) error
	MarkClearedAll(ctx context.Context) error
}
