package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"seedbazaar/internal/adapter/repository"
	"seedbazaar/internal/domain/entity"
	ws "seedbazaar/internal/infrastructure/websocket"
	apperrors "seedbazaar/pkg/errors"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type staticIdentity struct{ id string }

func (s staticIdentity) UserID() string { return s.id }

type fakeNotificationRepo struct {
	mu        sync.Mutex
	received  []entity.Notification
	sent      []entity.Notification
	forUser   []entity.Notification
	err       error
	clearErr  error
	cleared   []int64
	clearAll  int
	responded map[int64]entity.NotificationStatus
	created   []entity.OrderRequest

	// block, when set, holds Received until it is closed
	block chan struct{}
}

func (f *fakeNotificationRepo) Received(ctx context.Context) ([]entity.Notification, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Notification(nil), f.received...), f.err
}

func (f *fakeNotificationRepo) Sent(ctx context.Context) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Notification(nil), f.sent...), f.err
}

func (f *fakeNotificationRepo) ForUser(ctx context.Context, page, size int) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Notification(nil), f.forUser...), f.err
}

func (f *fakeNotificationRepo) Respond(ctx context.Context, id int64, status entity.NotificationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.responded == nil {
		f.responded = make(map[int64]entity.NotificationStatus)
	}
	f.responded[id] = status
	return nil
}

func (f *fakeNotificationRepo) Create(ctx context.Context, req entity.OrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, req)
	return nil
}

func (f *fakeNotificationRepo) MarkCleared(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, id)
	return nil
}

func (f *fakeNotificationRepo) clearedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.cleared...)
}

func (f *fakeNotificationRepo) MarkClearedAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clearAll++
	return nil
}

type fakeChatRepo struct {
	history       map[string][]entity.ChatMessage
	conversations []entity.ConversationSummary
	byID          map[int64]entity.ChatMessage
	err           error
}

func (f *fakeChatRepo) History(ctx context.Context, partnerID string) ([]entity.ChatMessage, error) {
	return f.history[partnerID], f.err
}

func (f *fakeChatRepo) Conversations(ctx context.Context) ([]entity.ConversationSummary, error) {
	return f.conversations, f.err
}

func (f *fakeChatRepo) MessageByID(ctx context.Context, id int64) (*entity.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("Chat message", nil)
	}
	return &m, nil
}

type fakePush struct {
	mu         sync.Mutex
	connected  bool
	connects   int
	subscribed []string
	handlers   map[string]ws.Handler
	published  []interface{}
	publishErr error
	onReady    func()
}

func (f *fakePush) Connect(ctx context.Context, onReady func()) {
	f.mu.Lock()
	f.connects++
	f.connected = true
	f.onReady = onReady
	f.mu.Unlock()
	onReady()
}

func (f *fakePush) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

// reconnect simulates a new session: the subscription table starts empty.
func (f *fakePush) reconnect() {
	f.mu.Lock()
	f.handlers = nil
	onReady := f.onReady
	f.mu.Unlock()
	onReady()
}

func (f *fakePush) Subscribe(topic string, handler ws.Handler) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]ws.Handler)
	}
	f.handlers[topic] = handler
	f.subscribed = append(f.subscribed, topic)
	return "sub-" + topic, nil
}

func (f *fakePush) Publish(destination string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakePush) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePush) deliver(topic, body string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(ws.Message{Topic: topic, Body: []byte(body)})
}

// harness wires the use cases the way the app does, over fakes.
type harness struct {
	identity  staticIdentity
	notifRepo *fakeNotificationRepo
	chatRepo  *fakeChatRepo
	loop      *EventLoop
	store     *ReconciliationStore
	watermark *ReadWatermark
	badges    *BadgeCounters
	screens   *ScreenTracker
	fetcher   *SnapshotFetcher
}

func newHarness(t *testing.T, userID string) *harness {
	h := &harness{
		identity:  staticIdentity{id: userID},
		notifRepo: &fakeNotificationRepo{},
		chatRepo:  &fakeChatRepo{history: map[string][]entity.ChatMessage{}},
		loop:      NewEventLoop(16),
		screens:   NewScreenTracker(),
	}
	h.store = NewReconciliationStore(h.identity, h.notifRepo, 10*time.Second, nil)
	h.store.now = func() time.Time { return t0.Add(time.Hour) }
	h.watermark = NewReadWatermark(repository.NewMemoryStateRepository())
	h.badges = NewBadgeCounters(h.store, h.watermark, h.identity, nil)
	h.fetcher = NewSnapshotFetcher(h.notifRepo, h.chatRepo, h.store, h.badges, h.screens, h.loop, nil, h.identity, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.loop.Start(ctx)
	t.Cleanup(func() {
		cancel()
		h.loop.Stop()
	})
	return h
}

// sync waits until every task posted so far has run.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	if err := h.loop.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("loop: %v", err)
	}
}

func request(id int64, status entity.NotificationStatus, buyer, seller string, sentAt time.Time) entity.Notification {
	return entity.Notification{
		ID:         id,
		BuyerID:    buyer,
		BuyerName:  "Buyer " + buyer,
		SellerID:   seller,
		SellerName: "Seller " + seller,
		Product:    entity.ProductRef{ID: 100 + id, Name: "Tomato seed", PricePerKg: 12.5},
		Status:     status,
		SentAt:     sentAt,
	}
}

func at(t time.Time) *time.Time { return &t }
