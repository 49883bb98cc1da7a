package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedbazaar/internal/domain/entity"
	ws "seedbazaar/internal/infrastructure/websocket"
)

const (
	pendingRequest7 = `{"id":7,"buyerId":"B","sellerId":"S","productName":"Tomato","requestStatus":"PENDING","sendAt":"2024-05-01T10:00:00"}`
	chatFromB       = `{"id":3,"senderId":"B","receiverId":"A","content":"hi","timestamp":"2024-05-01T10:05:00Z"}`
)

type realtimeFixture struct {
	*harness
	push      *fakePush
	uc        *RealtimeUseCase
	mu        sync.Mutex
	refreshed []entity.Screen
}

func newRealtimeFixture(t *testing.T, userID string) *realtimeFixture {
	f := &realtimeFixture{harness: newHarness(t, userID), push: &fakePush{}}
	f.uc = NewRealtimeUseCase(f.push, f.loop, f.store, f.badges, f.screens, f.fetcher, f.identity, nil)
	f.uc.refresher = refresherFunc(func(ctx context.Context, screen entity.Screen) error {
		f.mu.Lock()
		f.refreshed = append(f.refreshed, screen)
		f.mu.Unlock()
		return nil
	})
	// run refreshes inline so the recording above sees them
	f.uc.goRefresh = func(fn func()) { fn() }
	return f
}

type refresherFunc func(ctx context.Context, screen entity.Screen) error

func (fn refresherFunc) Refresh(ctx context.Context, screen entity.Screen) error {
	return fn(ctx, screen)
}

func TestRealtime_SubscribesOnEverySession(t *testing.T) {
	f := newRealtimeFixture(t, "S")
	f.uc.Start(context.Background())

	assert.Equal(t, ws.UserTopics("S"), f.push.subscribed)

	f.push.reconnect()
	assert.Len(t, f.push.subscribed, 6)
	assert.Equal(t, ws.UserTopics("S"), f.push.subscribed[3:])
	assert.True(t, f.uc.Connected())

	f.uc.Stop()
	assert.False(t, f.uc.Connected())
}

func TestRealtime_StartWithoutSession(t *testing.T) {
	f := newRealtimeFixture(t, "")
	f.uc.Start(context.Background())

	assert.Zero(t, f.push.connects)
	assert.Empty(t, f.push.subscribed)
}

func TestRealtime_PushIncrementsBadges(t *testing.T) {
	f := newRealtimeFixture(t, "S")
	f.uc.Start(context.Background())

	f.push.deliver(ws.TopicRequests("S"), pendingRequest7)
	f.sync(t)

	n, ok := f.store.Get(7)
	require.True(t, ok)
	assert.Equal(t, entity.CategorySales, n.Category)
	assert.Equal(t, entity.BadgeCounts{Sales: 1, Notifications: 1}, f.badges.Counts())

	// redelivery is not new
	f.push.deliver(ws.TopicRequests("S"), pendingRequest7)
	f.sync(t)
	assert.Equal(t, 1, f.badges.Get(entity.CategorySales))
}

func TestRealtime_FocusedScreenClearsInsteadOfCounting(t *testing.T) {
	f := newRealtimeFixture(t, "S")
	f.uc.Start(context.Background())
	_, err := f.screens.Focus(entity.ScreenSales, nil)
	require.NoError(t, err)

	f.push.deliver(ws.TopicRequests("S"), pendingRequest7)
	f.sync(t)

	assert.Equal(t, 0, f.badges.Get(entity.CategorySales))
	assert.Equal(t, 1, f.badges.Get(entity.CategoryNotifications))
	assert.Equal(t, []entity.Screen{entity.ScreenSales}, f.refreshed)
}

func TestRealtime_SnapshotStatusWinsOverRedeliveredPush(t *testing.T) {
	f := newRealtimeFixture(t, "S")
	f.uc.Start(context.Background())
	before := f.badges.Get(entity.CategorySales)

	f.push.deliver(ws.TopicRequests("S"), pendingRequest7)
	f.sync(t)

	accepted := request(7, entity.StatusAccepted, "B", "S", t0)
	accepted.RespondedAt = at(t0.Add(30 * time.Minute))
	f.notifRepo.received = []entity.Notification{accepted}
	require.NoError(t, f.fetcher.Seed(context.Background()))

	n, ok := f.store.Get(7)
	require.True(t, ok)
	assert.Equal(t, entity.StatusAccepted, n.Status)
	assert.Equal(t, before+1, f.badges.Get(entity.CategorySales))

	f.push.deliver(ws.TopicRequests("S"), pendingRequest7)
	f.sync(t)

	n, _ = f.store.Get(7)
	assert.Equal(t, entity.StatusAccepted, n.Status, "a redelivered PENDING push must not revert the status")
	assert.Equal(t, before+1, f.badges.Get(entity.CategorySales))
	assert.Equal(t, before+1, f.badges.Recompute().Sales)
}

func TestRealtime_ChatCountsOnlyIncoming(t *testing.T) {
	f := newRealtimeFixture(t, "A")
	f.uc.Start(context.Background())

	f.push.deliver(ws.TopicMessages("A"), chatFromB)
	f.push.deliver(ws.TopicMessages("A"), chatFromB)
	f.push.deliver(ws.TopicMessages("A"), `{"id":4,"senderId":"A","receiverId":"B","content":"from my other device"}`)
	f.sync(t)

	assert.Len(t, f.store.Messages(entity.NewConversationKey("A", "B", 0)), 2)
	assert.Equal(t, 1, f.badges.Get(entity.CategoryChat))
	assert.Equal(t, 0, f.badges.Get(entity.CategoryNotifications))
}

func TestRealtime_DropsMalformedFrames(t *testing.T) {
	f := newRealtimeFixture(t, "S")
	f.uc.Start(context.Background())

	f.push.deliver(ws.TopicRequests("S"), `{"id":`)
	f.push.deliver(ws.TopicRequests("S"), pendingRequest7)
	f.sync(t)

	assert.Len(t, f.store.Active(entity.CategorySales), 1)
}
