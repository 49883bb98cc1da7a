package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "seedbazaar/pkg/errors"
)

// fakeBroker is a minimal STOMP broker: it answers CONNECT, records
// SUBSCRIBE and SEND frames and can push MESSAGE frames to subscribers.
type fakeBroker struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string]string
	sent   []Frame
	auth   []string
	reject bool

	connects int32
}

func newFakeBroker(t *testing.T) *fakeBroker {
	b := &fakeBroker{subs: make(map[string]string)}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBroker) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *fakeBroker) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	b.mu.Lock()
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	b.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frames, err := ParseFrames(data)
		if err != nil {
			return
		}
		for _, f := range frames {
			switch f.Command {
			case CommandConnect:
				atomic.AddInt32(&b.connects, 1)
				b.mu.Lock()
				if b.reject {
					conn.WriteMessage(websocket.TextMessage, NewFrame(CommandError, map[string]string{"message": "bad token"}, nil).Encode())
					b.mu.Unlock()
					return
				}
				b.conn = conn
				b.subs = make(map[string]string)
				conn.WriteMessage(websocket.TextMessage, NewFrame(CommandConnected, map[string]string{"version": "1.2"}, nil).Encode())
				b.mu.Unlock()
			case CommandSubscribe:
				b.mu.Lock()
				b.subs[f.Header("destination")] = f.Header("id")
				b.mu.Unlock()
			case CommandUnsubscribe:
				b.mu.Lock()
				for topic, id := range b.subs {
					if id == f.Header("id") {
						delete(b.subs, topic)
					}
				}
				b.mu.Unlock()
			case CommandSend:
				b.mu.Lock()
				b.sent = append(b.sent, f)
				b.mu.Unlock()
			case CommandDisconnect:
				return
			}
		}
	}
}

func (b *fakeBroker) subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[topic]
	return ok
}

func (b *fakeBroker) push(topic, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := NewFrame(CommandMessage, map[string]string{
		"destination":  topic,
		"subscription": b.subs[topic],
		"message-id":   "m-1",
	}, []byte(body))
	b.conn.WriteMessage(websocket.TextMessage, f.Encode())
}

func (b *fakeBroker) dropConnection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

func (b *fakeBroker) sentFrames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Frame(nil), b.sent...)
}

func newTestConnection(b *fakeBroker, onError func(error)) *Connection {
	return NewConnection(Options{
		URL:              b.url(),
		Token:            func() string { return "token-1" },
		ReconnectDelay:   50 * time.Millisecond,
		HandshakeTimeout: time.Second,
		OnError:          onError,
	})
}

func TestConnection_SubscribeAndReceive(t *testing.T) {
	broker := newFakeBroker(t)
	conn := newTestConnection(broker, nil)
	defer conn.Disconnect()

	received := make(chan Message, 1)
	conn.Connect(context.Background(), func() {
		_, err := conn.Subscribe("/topic/messages/u1", func(m Message) { received <- m })
		assert.NoError(t, err)
	})

	require.Eventually(t, func() bool { return broker.subscribed("/topic/messages/u1") }, 2*time.Second, 10*time.Millisecond)
	broker.push("/topic/messages/u1", `{"content":"hi"}`)

	select {
	case m := <-received:
		assert.Equal(t, "/topic/messages/u1", m.Topic)
		assert.JSONEq(t, `{"content":"hi"}`, string(m.Body))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	broker.mu.Lock()
	assert.Equal(t, "Bearer token-1", broker.auth[0])
	broker.mu.Unlock()
}

func TestConnection_ConnectIsNoopWhileActive(t *testing.T) {
	broker := newFakeBroker(t)
	conn := newTestConnection(broker, nil)
	defer conn.Disconnect()

	var ready int32
	onReady := func() { atomic.AddInt32(&ready, 1) }
	conn.Connect(context.Background(), onReady)
	conn.Connect(context.Background(), onReady)

	require.Eventually(t, conn.Connected, 2*time.Second, 10*time.Millisecond)
	conn.Connect(context.Background(), onReady)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&broker.connects))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ready))
}

func TestConnection_PublishFailsFastWhenDisconnected(t *testing.T) {
	broker := newFakeBroker(t)
	conn := newTestConnection(broker, nil)

	err := conn.Publish(DestinationChatSend, map[string]string{"content": "hi"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotConnected))

	_, err = conn.Subscribe("/topic/x", func(Message) {})
	assert.ErrorIs(t, err, ErrNotConnected)

	conn.Connect(context.Background(), nil)
	defer conn.Disconnect()
	require.Eventually(t, conn.Connected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Publish(DestinationChatSend, map[string]string{"content": "hi"}))
	require.Eventually(t, func() bool { return len(broker.sentFrames()) == 1 }, 2*time.Second, 10*time.Millisecond)

	f := broker.sentFrames()[0]
	assert.Equal(t, DestinationChatSend, f.Header("destination"))
	assert.Equal(t, "application/json", f.Header("content-type"))
	assert.JSONEq(t, `{"content":"hi"}`, string(f.Body))
}

func TestConnection_ReconnectResetsSubscriptions(t *testing.T) {
	broker := newFakeBroker(t)
	var errs int32
	conn := newTestConnection(broker, func(error) { atomic.AddInt32(&errs, 1) })
	defer conn.Disconnect()

	var ready int32
	conn.Connect(context.Background(), func() {
		if atomic.AddInt32(&ready, 1) == 1 {
			conn.Subscribe("/topic/requests/u1", func(Message) {})
		}
	})

	require.Eventually(t, func() bool { return broker.subscribed("/topic/requests/u1") }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"/topic/requests/u1"}, conn.Subscriptions())

	broker.dropConnection()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ready) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, conn.Connected, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, conn.Subscriptions(), "the second onReady did not resubscribe")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&errs), int32(1))
}

func TestConnection_UnsubscribeAndDuplicateSubscribe(t *testing.T) {
	broker := newFakeBroker(t)
	conn := newTestConnection(broker, nil)
	defer conn.Disconnect()

	conn.Connect(context.Background(), nil)
	require.Eventually(t, conn.Connected, 2*time.Second, 10*time.Millisecond)

	first, err := conn.Subscribe("/topic/a", func(Message) {})
	require.NoError(t, err)
	second, err := conn.Subscribe("/topic/a", func(Message) {})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Eventually(t, func() bool { return broker.subscribed("/topic/a") }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Unsubscribe(first))
	require.Eventually(t, func() bool { return !broker.subscribed("/topic/a") }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, conn.Subscriptions())
}

func TestConnection_DisconnectIsIdempotent(t *testing.T) {
	broker := newFakeBroker(t)
	conn := newTestConnection(broker, nil)

	conn.Disconnect()

	conn.Connect(context.Background(), nil)
	require.Eventually(t, conn.Connected, 2*time.Second, 10*time.Millisecond)

	conn.Disconnect()
	conn.Disconnect()
	assert.Equal(t, StateDisconnected, conn.State())
	assert.ErrorIs(t, conn.Publish(DestinationChatSend, "x"), ErrNotConnected)
}

func TestConnection_RejectedHandshakeReportsError(t *testing.T) {
	broker := newFakeBroker(t)
	broker.reject = true

	errs := make(chan error, 10)
	conn := newTestConnection(broker, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	defer conn.Disconnect()

	conn.Connect(context.Background(), func() { t.Error("onReady must not run") })

	select {
	case err := <-errs:
		assert.True(t, apperrors.Is(err, apperrors.CodeTransport))
		assert.Contains(t, err.Error(), "bad token")
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
	assert.False(t, conn.Connected())
}

func TestConnection_ExponentialBackoff(t *testing.T) {
	conn := NewConnection(Options{
		URL:               "ws://unused",
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 500 * time.Millisecond,
		Exponential:       true,
	})

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		delays = append(delays, conn.nextDelay())
	}

	assert.InDelta(t, float64(100*time.Millisecond), float64(delays[0]), float64(20*time.Millisecond))
	assert.InDelta(t, float64(200*time.Millisecond), float64(delays[1]), float64(40*time.Millisecond))
	for _, d := range delays[3:] {
		assert.InDelta(t, float64(500*time.Millisecond), float64(d), float64(100*time.Millisecond))
	}

	flat := NewConnection(Options{URL: "ws://unused"})
	assert.Equal(t, 5*time.Second, flat.nextDelay())
}
