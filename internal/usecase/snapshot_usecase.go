package usecase

import (
	"context"
	"fmt"
	"net/http"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/domain/repository"
	"seedbazaar/internal/infrastructure/metrics"
	"seedbazaar/internal/infrastructure/ratelimit"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// notificationsPageSize is what the aggregated notifications screen asks
// for on every refresh.
const notificationsPageSize = 10

var (
	errNotFocused = errors.New(errors.CodeConflict, "Screen is not focused", http.StatusConflict, entity.ErrScreenNotFocused)
	errStale      = errors.New(errors.CodeConflict, "Screen changed while loading", http.StatusConflict, entity.ErrStaleCompletion)
)

// snapshot is the result of one fetch, applied on the event loop.
type snapshot struct {
	category      entity.Category
	notifications []entity.Notification
	conversations []entity.ConversationSummary
	history       []entity.ChatMessage
}

// SnapshotFetcher pulls the current truth for a screen from the REST API
// and merges it into the store. Completions for a screen that was blurred
// or refocused meanwhile are dropped.
type SnapshotFetcher struct {
	notifications repository.NotificationRepository
	chat          repository.ChatRepository
	store         *ReconciliationStore
	badges        *BadgeCounters
	screens       *ScreenTracker
	loop          *EventLoop
	limiter       *ratelimit.RateLimiter
	identity      Identity
	metrics       *metrics.Metrics
}

func NewSnapshotFetcher(
	notifications repository.NotificationRepository,
	chat repository.ChatRepository,
	store *ReconciliationStore,
	badges *BadgeCounters,
	screens *ScreenTracker,
	loop *EventLoop,
	limiter *ratelimit.RateLimiter,
	identity Identity,
	m *metrics.Metrics,
) *SnapshotFetcher {
	return &SnapshotFetcher{
		notifications: notifications,
		chat:          chat,
		store:         store,
		badges:        badges,
		screens:       screens,
		loop:          loop,
		limiter:       limiter,
		identity:      identity,
		metrics:       m,
	}
}

// Refresh fetches the data shown by screen. The screen must be focused;
// the fetch is throttled per user.
func (f *SnapshotFetcher) Refresh(ctx context.Context, screen entity.Screen) error {
	st, err := f.screens.State(screen)
	if err != nil {
		return errors.BadRequest("Unknown screen "+string(screen), err)
	}
	if !st.Focused {
		return errNotFocused
	}

	userID := f.identity.UserID()
	if userID == "" {
		return errors.Unauthorized("No active session", entity.ErrNoSession)
	}
	if f.limiter != nil {
		if allowed, wait := f.limiter.Allow(userID, ratelimit.ActionRefresh); !allowed {
			return errors.TooManyRequests(fmt.Sprintf("Refresh rate exceeded, retry in %s", wait))
		}
	}

	gen := st.Generation
	f.screens.SetLoading(screen, gen, true)

	snap, fetchErr := f.fetch(ctx, screen, st.Target)

	return f.loop.Do(ctx, func() error {
		if !f.screens.IsCurrent(screen, gen) {
			f.metrics.StaleCompletion(string(screen))
			logger.Debug("Discarding %s snapshot of generation %d", screen, gen)
			return errStale
		}
		if fetchErr != nil {
			f.screens.SetError(screen, gen, fetchErr)
			return fetchErr
		}

		f.apply(snap)
		f.badges.Recompute()
		// the user is looking at it: new data is read right away
		f.badges.Clear(screen.Category())
		f.screens.SetError(screen, gen, nil)
		return nil
	})
}

func (f *SnapshotFetcher) fetch(ctx context.Context, screen entity.Screen, target *entity.ChatTarget) (snapshot, error) {
	var (
		snap = snapshot{category: screen.Category()}
		err  error
	)

	switch screen {
	case entity.ScreenSales:
		snap.notifications, err = f.notifications.Received(ctx)
	case entity.ScreenOrders:
		snap.notifications, err = f.notifications.Sent(ctx)
	case entity.ScreenNotifications:
		snap.notifications, err = f.notifications.ForUser(ctx, 0, notificationsPageSize)
	case entity.ScreenChat:
		snap.conversations, err = f.chat.Conversations(ctx)
	case entity.ScreenChatDetail:
		if target == nil {
			return snap, errors.BadRequest("Chat detail has no partner", nil)
		}
		snap.history, err = f.chat.History(ctx, target.PartnerID)
	default:
		return snap, errors.BadRequest("Unknown screen "+string(screen), entity.ErrUnknownScreen)
	}

	return snap, err
}

func (f *SnapshotFetcher) apply(snap snapshot) {
	if snap.notifications != nil {
		res := f.store.MergeFromSnapshot(snap.category, snap.notifications)
		logger.WithFields(map[string]interface{}{
			"category":     snap.category,
			"inserted":     res.Inserted,
			"transitioned": res.Transitioned,
			"updated":      res.Updated,
			"skipped":      res.Skipped,
		}).Debug("Merged notification snapshot")
	}
	if snap.conversations != nil {
		f.store.MergeConversations(snap.conversations)
	}
	if snap.history != nil {
		byKey := make(map[entity.ConversationKey][]entity.ChatMessage)
		for _, m := range snap.history {
			byKey[m.Conversation()] = append(byKey[m.Conversation()], m)
		}
		for key, msgs := range byKey {
			f.store.MergeChatHistory(key, msgs)
		}
	}
}

// Seed loads received and sent requests and the conversation list without
// any screen being focused. Used once at startup; partial failures are
// logged and the first error returned after merging what did load.
func (f *SnapshotFetcher) Seed(ctx context.Context) error {
	if f.identity.UserID() == "" {
		return errors.Unauthorized("No active session", entity.ErrNoSession)
	}

	var firstErr error
	keep := func(what string, err error) bool {
		if err == nil {
			return true
		}
		logger.Warn("Initial %s fetch failed: %v", what, err)
		if firstErr == nil {
			firstErr = err
		}
		return false
	}

	var snaps []snapshot
	if list, err := f.notifications.Received(ctx); keep("received", err) {
		snaps = append(snaps, snapshot{category: entity.CategorySales, notifications: list})
	}
	if list, err := f.notifications.Sent(ctx); keep("sent", err) {
		snaps = append(snaps, snapshot{category: entity.CategoryOrders, notifications: list})
	}
	if list, err := f.chat.Conversations(ctx); keep("conversations", err) {
		snaps = append(snaps, snapshot{conversations: list})
	}

	err := f.loop.Do(ctx, func() error {
		for _, s := range snaps {
			f.apply(s)
		}
		f.badges.Recompute()
		return nil
	})
	if err != nil {
		return err
	}
	return firstErr
}
