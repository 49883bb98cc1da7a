package sse

import (
	"sync"
)

const subscriberBuffer = 16

// Event is one server-sent event: a name and a JSON encodable payload.
type Event struct {
	Name string
	Data interface{}
}

// Hub fans events out to every connected observer. Slow observers miss
// events instead of blocking the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	last        *Event
	closed      bool
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers an observer. The latest published event, if any, is
// queued right away so a new observer starts from the current state. The
// returned cleanup must be called exactly once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.last != nil {
		ch <- *h.last
	}
	h.subscribers[ch] = struct{}{}

	cleanup := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, cleanup
}

// Publish delivers event to every observer without blocking.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.last = &event
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// full buffer, the observer catches up with the next event
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every observer. Later subscriptions get a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
