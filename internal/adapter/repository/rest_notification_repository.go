package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"seedbazaar/internal/adapter/dto"
	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/logger"
)

const notificationBase = "/web/api/v1/notification"

type restNotificationRepository struct {
	client *RestClient
	now    func() time.Time
}

func NewRestNotificationRepository(client *RestClient) repository.NotificationRepository {
	return &restNotificationRepository{
		client: client,
		now:    time.Now,
	}
}

func (r *restNotificationRepository) list(ctx context.Context, operation, path string) ([]entity.Notification, error) {
	var payloads []dto.NotificationPayload
	if err := r.client.do(ctx, operation, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	now := r.now()
	notifications := make([]entity.Notification, 0, len(payloads))
	for _, p := range payloads {
		n, err := p.ToEntity(now)
		if err != nil {
			logger.Warn("Skipping malformed notification %d from %s: %v", p.ID, operation, err)
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (r *restNotificationRepository) Received(ctx context.Context) ([]entity.Notification, error) {
	return r.list(ctx, "notifications_received", notificationBase+"/view/received")
}

func (r *restNotificationRepository) Sent(ctx context.Context) ([]entity.Notification, error) {
	return r.list(ctx, "notifications_sent", notificationBase+"/view/sent")
}

func (r *restNotificationRepository) ForUser(ctx context.Context, page, size int) ([]entity.Notification, error) {
	if size <= 0 {
		size = 10
	}
	path := fmt.Sprintf("%s/user/received?page=%d&size=%d", notificationBase, page, size)
	return r.list(ctx, "notifications_user", path)
}

func (r *restNotificationRepository) Respond(ctx context.Context, id int64, status entity.NotificationStatus) error {
	path := fmt.Sprintf("%s/respond/%d/%s", notificationBase, id, status)
	return r.client.do(ctx, "notification_respond", http.MethodPut, path, nil, nil)
}

func (r *restNotificationRepository) Create(ctx context.Context, req entity.OrderRequest) error {
	return r.client.do(ctx, "notification_create", http.MethodPost, notificationBase+"/create", dto.NewOrderRequestPayload(req), nil)
}

func (r *restNotificationRepository) MarkCleared(ctx context.Context, id int64) error {
	path := fmt.Sprintf("%s/mark-cleared/%d", notificationBase, id)
	return r.client.do(ctx, "notification_clear", http.MethodPatch, path, nil, nil)
}

func (r *restNotificationRepository) MarkClearedAll(ctx context.Context) error {
	return r.client.do(ctx, "notification_clear_all", http.MethodPatch, notificationBase+"/mark-cleared-all", nil, nil)
}
