// Package apptest builds an App over in-memory backends for tests of the
// packages that sit on top of it.
package apptest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"seedbazaar/internal/adapter/repository"
	"seedbazaar/internal/app"
	"seedbazaar/internal/domain/entity"
	domainrepo "seedbazaar/internal/domain/repository"
	ws "seedbazaar/internal/infrastructure/websocket"
	"seedbazaar/pkg/config"
	apperrors "seedbazaar/pkg/errors"
)

// NotificationRepo is a backend holding received and sent requests.
type NotificationRepo struct {
	mu           sync.Mutex
	ReceivedList []entity.Notification
	SentList     []entity.Notification
	Err          error
	Cleared      []int64
	Responded    map[int64]entity.NotificationStatus
	Created      []entity.OrderRequest
}

func (f *NotificationRepo) SetReceived(list ...entity.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReceivedList = list
}

func (f *NotificationRepo) Received(ctx context.Context) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Notification(nil), f.ReceivedList...), f.Err
}

func (f *NotificationRepo) Sent(ctx context.Context) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Notification(nil), f.SentList...), f.Err
}

func (f *NotificationRepo) ForUser(ctx context.Context, page, size int) ([]entity.Notification, error) {
	return nil, nil
}

func (f *NotificationRepo) Respond(ctx context.Context, id int64, status entity.NotificationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Responded == nil {
		f.Responded = make(map[int64]entity.NotificationStatus)
	}
	f.Responded[id] = status
	return f.Err
}

func (f *NotificationRepo) Create(ctx context.Context, req entity.OrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, req)
	return f.Err
}

func (f *NotificationRepo) MarkCleared(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cleared = append(f.Cleared, id)
	return nil
}

func (f *NotificationRepo) MarkClearedAll(ctx context.Context) error {
	return nil
}

// ChatRepo serves a fixed history per partner.
type ChatRepo struct {
	HistoryByPartner map[string][]entity.ChatMessage
	ConversationList []entity.ConversationSummary
}

func (f *ChatRepo) History(ctx context.Context, partnerID string) ([]entity.ChatMessage, error) {
	return f.HistoryByPartner[partnerID], nil
}

func (f *ChatRepo) Conversations(ctx context.Context) ([]entity.ConversationSummary, error) {
	return f.ConversationList, nil
}

func (f *ChatRepo) MessageByID(ctx context.Context, id int64) (*entity.ChatMessage, error) {
	for _, list := range f.HistoryByPartner {
		for i := range list {
			if list[i].ID == id {
				m := list[i]
				return &m, nil
			}
		}
	}
	return nil, apperrors.NotFound("Chat message", nil)
}

// Push stands in for the STOMP connection. Connect completes the handshake
// immediately.
type Push struct {
	mu        sync.Mutex
	connected bool
	Connects  int
	handlers  map[string]ws.Handler
	Published []interface{}
}

func (p *Push) Connect(ctx context.Context, onReady func()) {
	p.mu.Lock()
	p.Connects++
	p.connected = true
	p.handlers = nil
	p.mu.Unlock()
	onReady()
}

func (p *Push) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.handlers = nil
	p.mu.Unlock()
}

func (p *Push) Subscribe(topic string, handler ws.Handler) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return "", apperrors.NotConnected("push connection is down")
	}
	if p.handlers == nil {
		p.handlers = make(map[string]ws.Handler)
	}
	p.handlers[topic] = handler
	return "sub-" + topic, nil
}

func (p *Push) Publish(destination string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return apperrors.NotConnected("push connection is down")
	}
	p.Published = append(p.Published, payload)
	return nil
}

func (p *Push) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Topics lists the currently subscribed topics.
func (p *Push) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.handlers))
	for topic := range p.handlers {
		topics = append(topics, topic)
	}
	return topics
}

// Deliver hands body to the subscriber of topic, as the read goroutine
// would. It reports false when nothing is subscribed.
func (p *Push) Deliver(topic, body string) bool {
	p.mu.Lock()
	h := p.handlers[topic]
	p.mu.Unlock()
	if h == nil {
		return false
	}
	h(ws.Message{Topic: topic, Body: []byte(body)})
	return true
}

type Fixture struct {
	App           *app.App
	Notifications *NotificationRepo
	Chat          *ChatRepo
	Push          *Push
	State         domainrepo.StateRepository
}

func Config() *config.Config {
	return &config.Config{
		APIBaseURL:        "http://backend.invalid",
		RequestTimeout:    time.Second,
		ChatEchoWindow:    10 * time.Second,
		StateBackend:      config.StateBackendMemory,
		ChatSendPerMinute: 100,
		RefreshPerMinute:  100,
	}
}

// New builds and initialises an App. The App is disposed when the test
// ends.
func New(t *testing.T) *Fixture {
	t.Helper()

	f := &Fixture{
		Notifications: &NotificationRepo{},
		Chat:          &ChatRepo{HistoryByPartner: map[string][]entity.ChatMessage{}},
		Push:          &Push{},
		State:         repository.NewMemoryStateRepository(),
	}

	a, err := app.New(context.Background(), Config(), app.Deps{
		State:         f.State,
		Notifications: f.Notifications,
		Chat:          f.Chat,
		Push:          f.Push,
	})
	require.NoError(t, err)
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(a.Dispose)

	f.App = a
	return f
}

// Sync waits until every task posted to the loop so far has run.
func (f *Fixture) Sync(t *testing.T) {
	t.Helper()
	require.NoError(t, f.App.Loop.Do(context.Background(), func() error { return nil }))
}
