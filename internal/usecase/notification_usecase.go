package usecase

import (
	"context"
	"time"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// NotificationUseCase serves the user actions on order request
// notifications: listing, reading, clearing, responding and creating.
type NotificationUseCase struct {
	repo      repository.NotificationRepository
	store     *ReconciliationStore
	badges    *BadgeCounters
	watermark *ReadWatermark
	loop      *EventLoop
	identity  Identity
	now       func() time.Time
}

func NewNotificationUseCase(
	repo repository.NotificationRepository,
	store *ReconciliationStore,
	badges *BadgeCounters,
	watermark *ReadWatermark,
	loop *EventLoop,
	identity Identity,
) *NotificationUseCase {
	return &NotificationUseCase{
		repo:      repo,
		store:     store,
		badges:    badges,
		watermark: watermark,
		loop:      loop,
		identity:  identity,
		now:       time.Now,
	}
}

func (uc *NotificationUseCase) List(category entity.Category) ([]entity.Notification, error) {
	if !category.Valid() || category == entity.CategoryChat {
		return nil, errors.BadRequest("Unknown notification category "+string(category), entity.ErrUnknownCategory)
	}
	return uc.store.Active(category), nil
}

// MarkAllRead moves the watermark to now and recomputes the badges. The
// watermark is stored first; the new value becomes visible on the loop.
func (uc *NotificationUseCase) MarkAllRead(ctx context.Context) (time.Time, error) {
	t, err := uc.watermark.PersistNow(ctx)
	if err != nil {
		return uc.watermark.Get(), err
	}
	var committed time.Time
	err = uc.loop.Do(ctx, func() error {
		committed = uc.watermark.Commit(t)
		uc.badges.Recompute()
		return nil
	})
	return committed, err
}

// Clear removes one notification. The backend call runs outside the loop;
// the tombstone and the recompute run on it.
func (uc *NotificationUseCase) Clear(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.BadRequest("Invalid notification id", nil)
	}
	if err := uc.store.ClearRemote(ctx, id); err != nil {
		logger.Warn("Clear of notification %d failed: %v", id, err)
		return err
	}
	return uc.loop.Do(ctx, func() error {
		uc.store.Tombstone(id)
		uc.badges.Recompute()
		return nil
	})
}

func (uc *NotificationUseCase) ClearAll(ctx context.Context) error {
	if err := uc.store.ClearAllRemote(ctx); err != nil {
		logger.Warn("Clear of all notifications failed: %v", err)
		return err
	}
	return uc.loop.Do(ctx, func() error {
		uc.store.TombstoneAll()
		uc.badges.Recompute()
		return nil
	})
}

// Respond sends the seller's answer and applies it locally once the
// backend accepted it.
func (uc *NotificationUseCase) Respond(ctx context.Context, id int64, status entity.NotificationStatus) (*entity.Notification, error) {
	if !status.Terminal() {
		return nil, errors.BadRequest("Status must be ACCEPTED or REJECTED", nil)
	}
	n, ok := uc.store.Get(id)
	if !ok {
		return nil, errors.NotFound("Notification", nil)
	}
	if n.SellerID != uc.identity.UserID() {
		return nil, errors.Forbidden("Only the seller can respond to a request", entity.ErrNotParticipant)
	}

	if err := uc.repo.Respond(ctx, id, status); err != nil {
		return nil, err
	}

	var updated entity.Notification
	err := uc.loop.Do(ctx, func() error {
		if _, err := uc.store.ApplyResponse(id, status, uc.now()); err != nil {
			return err
		}
		updated, _ = uc.store.Get(id)
		uc.badges.Recompute()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Create opens a new order request as the current user.
func (uc *NotificationUseCase) Create(ctx context.Context, req entity.OrderRequest) error {
	me := uc.identity.UserID()
	if me == "" {
		return errors.Unauthorized("No active session", entity.ErrNoSession)
	}
	if req.BuyerID == "" {
		req.BuyerID = me
	}
	if req.BuyerID != me {
		return errors.BadRequest("Requests can only be created as the buyer", entity.ErrNotParticipant)
	}
	if req.SellerID == "" || req.SellerID == me {
		return errors.BadRequest("A request needs another user as seller", nil)
	}
	if req.ProductID <= 0 || req.DesiredQuantity <= 0 {
		return errors.BadRequest("productId and desiredQuantity must be positive", nil)
	}

	return uc.repo.Create(ctx, req)
}
