package usecase

import (
	"context"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/infrastructure/metrics"
	ws "seedbazaar/internal/infrastructure/websocket"
	"seedbazaar/pkg/logger"
)

// PushConnection is the slice of *websocket.Connection used here.
type PushConnection interface {
	Connect(ctx context.Context, onReady func())
	Disconnect()
	Subscribe(topic string, handler ws.Handler) (string, error)
	Publish(destination string, payload interface{}) error
	Connected() bool
}

// RealtimeUseCase owns the inbound side of the push stream: it subscribes
// the user topics on every session and applies decoded events on the loop.
type RealtimeUseCase struct {
	conn      PushConnection
	router    *ws.MessageRouter
	loop      *EventLoop
	store     *ReconciliationStore
	badges    *BadgeCounters
	screens   *ScreenTracker
	refresher Refresher
	identity  Identity
	metrics   *metrics.Metrics

	goRefresh func(fn func())
}

func NewRealtimeUseCase(
	conn PushConnection,
	loop *EventLoop,
	store *ReconciliationStore,
	badges *BadgeCounters,
	screens *ScreenTracker,
	refresher Refresher,
	identity Identity,
	m *metrics.Metrics,
) *RealtimeUseCase {
	uc := &RealtimeUseCase{
		conn:      conn,
		loop:      loop,
		store:     store,
		badges:    badges,
		screens:   screens,
		refresher: refresher,
		identity:  identity,
		metrics:   m,
		goRefresh: func(fn func()) { go fn() },
	}
	uc.router = ws.NewMessageRouter(uc, m)
	return uc
}

// Start opens the push connection. Without a session there is nothing to
// subscribe to and Start does nothing.
func (uc *RealtimeUseCase) Start(ctx context.Context) {
	if uc.identity.UserID() == "" {
		logger.Info("No session, push connection not started")
		return
	}
	uc.conn.Connect(ctx, uc.onReady)
}

func (uc *RealtimeUseCase) Stop() {
	uc.conn.Disconnect()
}

func (uc *RealtimeUseCase) Connected() bool {
	return uc.conn.Connected()
}

// onReady runs after every handshake. Subscriptions do not survive a
// reconnect, so all of them are issued again here.
func (uc *RealtimeUseCase) onReady() {
	userID := uc.identity.UserID()
	if userID == "" {
		logger.Warn("Push session ready but no user is signed in")
		return
	}

	for _, topic := range ws.UserTopics(userID) {
		if _, err := uc.conn.Subscribe(topic, uc.router.Handle); err != nil {
			logger.Error("Failed to subscribe to %s: %v", topic, err)
		}
	}
}

// HandleEvent is called from the connection's read goroutine and hands the
// event over to the loop.
func (uc *RealtimeUseCase) HandleEvent(event entity.Event) {
	if !uc.loop.Post(func() { uc.apply(event) }) {
		logger.Debug("Event loop stopped, dropping %s event", event.Kind())
	}
}

func (uc *RealtimeUseCase) apply(event entity.Event) {
	switch ev := event.(type) {
	case entity.ChatMessageEvent:
		outcome := uc.store.AddChatMessage(ev.Message.Conversation(), ev.Message)
		if outcome == Inserted && ev.Message.ReceiverID == uc.identity.UserID() {
			uc.bump(entity.CategoryChat)
		}

	default:
		outcome, n, err := uc.store.MergeFromPush(event)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"kind":    event.Kind(),
				"outcome": outcome.String(),
			}).Debugf("Push event not merged: %v", err)
			return
		}
		if outcome.Changed() {
			uc.bump(n.Category)
		}
	}
}

// bump counts a new item for category c and for the aggregated
// notifications badge. A category whose screen is focused stays at zero
// and its screens refresh instead.
func (uc *RealtimeUseCase) bump(c entity.Category) {
	categories := []entity.Category{c}
	if entity.CategoryNotifications.Includes(c) {
		categories = append(categories, entity.CategoryNotifications)
	}

	for _, cat := range categories {
		if uc.screens.FocusedCategory(cat) {
			uc.badges.Clear(cat)
		} else {
			uc.badges.Increment(cat)
		}
	}

	for _, screen := range uc.screens.FocusedScreens(c) {
		screen := screen
		uc.goRefresh(func() {
			if err := uc.refresher.Refresh(context.Background(), screen); err != nil {
				logger.Debug("Refresh of %s after push: %v", screen, err)
			}
		})
	}
}
