package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"seedbazaar/internal/infrastructure/metrics"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// ErrNotConnected is returned by Subscribe and Publish while no session is
// established. Nothing is queued.
var ErrNotConnected = errors.NotConnected("push connection is not established")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// Message is a MESSAGE frame delivered to a subscription handler.
type Message struct {
	Topic   string
	Headers map[string]string
	Body    []byte
}

type Handler func(Message)

type Options struct {
	URL string
	// Token is read on every dial so a refreshed token is picked up by the
	// next reconnect.
	Token             func() string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	Exponential       bool
	Heartbeat         time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	OnError           func(error)
	Metrics           *metrics.Metrics
	Dialer            *websocket.Dialer
}

func (o *Options) defaults() {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.MaxReconnectDelay < o.ReconnectDelay {
		o.MaxReconnectDelay = o.ReconnectDelay
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.HandshakeTimeout,
		}
	}
}

type subscription struct {
	id      string
	topic   string
	handler Handler
}

// Connection is one logical STOMP session over a reconnecting websocket.
// Subscriptions belong to a session: every reconnect starts with an empty
// table and the onReady callback must subscribe again.
type Connection struct {
	opts Options

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	subs     map[string]*subscription
	byTopic  map[string]string
	cancel   context.CancelFunc
	done     chan struct{}
	attempts int

	writeMu sync.Mutex
}

func NewConnection(opts Options) *Connection {
	opts.defaults()
	return &Connection{
		opts:    opts,
		subs:    make(map[string]*subscription),
		byTopic: make(map[string]string),
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Connected() bool {
	return c.State() == StateConnected
}

// Connect starts the connect loop. onReady runs once per successful
// handshake, before any frame of that session is dispatched. Calling
// Connect while connected or connecting does nothing.
func (c *Connection) Connect(ctx context.Context, onReady func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		logger.Debug("Push connection already %s, ignoring connect", c.state)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateConnecting
	c.attempts = 0

	go c.run(runCtx, onReady, c.done)
}

// Disconnect tears the session down and stops reconnecting. It is safe to
// call more than once but must not be called from a subscription handler.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	if conn != nil {
		// best effort, the broker may already be gone
		_ = c.write(conn, NewFrame(CommandDisconnect, nil, nil))
		_ = conn.Close()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("Push connection did not stop within 5s")
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

// Subscribe registers handler for topic on the current session. A second
// subscribe to the same topic replaces the handler and keeps the id.
func (c *Connection) Subscribe(topic string, handler Handler) (string, error) {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	if id, ok := c.byTopic[topic]; ok {
		c.subs[id].handler = handler
		c.mu.Unlock()
		return id, nil
	}

	id := "sub-" + uuid.NewString()
	c.subs[id] = &subscription{id: id, topic: topic, handler: handler}
	c.byTopic[topic] = id
	conn := c.conn
	c.mu.Unlock()

	err := c.write(conn, NewFrame(CommandSubscribe, map[string]string{
		"id":          id,
		"destination": topic,
		"ack":         "auto",
	}, nil))
	if err != nil {
		c.mu.Lock()
		delete(c.subs, id)
		delete(c.byTopic, topic)
		c.mu.Unlock()
		return "", err
	}

	logger.Info("Subscribed to %s (%s)", topic, id)
	return id, nil
}

func (c *Connection) Unsubscribe(id string) error {
	c.mu.Lock()
	sub, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
		delete(c.byTopic, sub.topic)
	}
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !ok || !connected || conn == nil {
		return nil
	}
	return c.write(conn, NewFrame(CommandUnsubscribe, map[string]string{"id": id}, nil))
}

// Subscriptions lists the topics of the current session.
func (c *Connection) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	topics := make([]string, 0, len(c.byTopic))
	for topic := range c.byTopic {
		topics = append(topics, topic)
	}
	return topics
}

// Publish sends payload as JSON to destination. There is no receipt; a nil
// error only means the frame was written.
func (c *Connection) Publish(destination string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Internal("Failed to encode payload", err)
	}

	return c.write(conn, NewFrame(CommandSend, map[string]string{
		"destination":    destination,
		"content-type":   "application/json",
		"content-length": strconv.Itoa(len(body)),
	}, body))
}

func (c *Connection) write(conn *websocket.Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, f.Encode()); err != nil {
		return errors.Transport(fmt.Sprintf("Failed to write %s frame", f.Command), err)
	}
	return nil
}

func (c *Connection) reportError(err error) {
	logger.WithComponent("push").Warnf("%v", err)
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

func (c *Connection) run(ctx context.Context, onReady func(), done chan struct{}) {
	defer close(done)

	for {
		err := c.session(ctx, onReady)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.reportError(err)
		}

		c.mu.Lock()
		c.state = StateConnecting
		delay := c.nextDelay()
		c.mu.Unlock()

		logger.Info("Push connection lost, reconnecting in %s", delay)
		c.opts.Metrics.Reconnect()

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextDelay must be called with c.mu held.
func (c *Connection) nextDelay() time.Duration {
	if !c.opts.Exponential {
		return c.opts.ReconnectDelay
	}

	delay := c.opts.ReconnectDelay
	for i := 0; i < c.attempts && delay < c.opts.MaxReconnectDelay; i++ {
		delay *= 2
	}
	if delay > c.opts.MaxReconnectDelay {
		delay = c.opts.MaxReconnectDelay
	}
	c.attempts++

	// +-10% jitter
	jitter := time.Duration(rand.Int63n(int64(delay)/5+1)) - delay/10
	return delay + jitter
}

func (c *Connection) session(ctx context.Context, onReady func()) error {
	header := http.Header{}
	token := ""
	if c.opts.Token != nil {
		token = c.opts.Token()
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return errors.Transport("Failed to dial push endpoint", err)
	}

	if err := c.handshake(conn, token); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.subs = make(map[string]*subscription)
	c.byTopic = make(map[string]string)
	c.mu.Unlock()

	c.opts.Metrics.SetConnected(true)
	logger.Info("Push connection established to %s", c.opts.URL)

	stopPing := make(chan struct{})
	defer func() {
		close(stopPing)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.state = StateConnecting
		}
		c.subs = make(map[string]*subscription)
		c.byTopic = make(map[string]string)
		c.mu.Unlock()
		conn.Close()
		c.opts.Metrics.SetConnected(false)
	}()

	if c.opts.Heartbeat > 0 {
		conn.SetReadDeadline(time.Now().Add(2 * c.opts.Heartbeat))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * c.opts.Heartbeat))
		})
		go c.pingLoop(conn, stopPing)
	}

	if onReady != nil {
		onReady()
	}

	return c.readLoop(conn)
}

func (c *Connection) handshake(conn *websocket.Conn, token string) error {
	host := ""
	if u, err := url.Parse(c.opts.URL); err == nil {
		host = u.Host
	}

	headers := map[string]string{
		"accept-version": "1.2",
		"host":           host,
		"heart-beat":     "0,0",
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	if err := c.write(conn, NewFrame(CommandConnect, headers, nil)); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Transport("Handshake failed", err)
		}
		frames, err := ParseFrames(data)
		if err != nil {
			return errors.Transport("Invalid handshake frame", err)
		}
		for _, f := range frames {
			switch f.Command {
			case CommandConnected:
				return nil
			case CommandError:
				return errors.Transport("Broker refused connection: "+f.Header("message"), nil)
			}
		}
	}
}

func (c *Connection) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (c *Connection) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.Transport("Broker closed the connection", err)
			}
			return errors.Transport("Push connection read failed", err)
		}

		frames, err := ParseFrames(data)
		if err != nil {
			c.opts.Metrics.FrameDropped("stomp")
			logger.Warn("Dropping unparseable STOMP data: %v", err)
		}

		for _, f := range frames {
			switch f.Command {
			case CommandMessage:
				c.dispatch(f)
			case CommandError:
				return errors.Transport("Broker error: "+f.Header("message"), nil)
			}
		}
	}
}

func (c *Connection) dispatch(f Frame) {
	c.mu.Lock()
	sub, ok := c.subs[f.Header("subscription")]
	if !ok {
		// fall back to destination for brokers that omit the subscription id
		if id, found := c.byTopic[f.Header("destination")]; found {
			sub, ok = c.subs[id]
		}
	}
	c.mu.Unlock()

	if !ok {
		logger.Debug("No subscription for frame on %s", f.Header("destination"))
		return
	}

	topic := f.Header("destination")
	if topic == "" {
		topic = sub.topic
	}
	sub.handler(Message{Topic: topic, Headers: f.Headers, Body: f.Body})
}
