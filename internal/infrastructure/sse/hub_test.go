package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesEverySubscriber(t *testing.T) {
	hub := NewHub()
	a, cleanupA := hub.Subscribe()
	defer cleanupA()
	b, cleanupB := hub.Subscribe()
	defer cleanupB()

	hub.Publish(Event{Name: "badges", Data: 1})

	assert.Equal(t, Event{Name: "badges", Data: 1}, <-a)
	assert.Equal(t, Event{Name: "badges", Data: 1}, <-b)
	assert.Equal(t, 2, hub.SubscriberCount())
}

func TestHub_NewSubscriberGetsLatest(t *testing.T) {
	hub := NewHub()
	hub.Publish(Event{Name: "badges", Data: 1})
	hub.Publish(Event{Name: "badges", Data: 2})

	ch, cleanup := hub.Subscribe()
	defer cleanup()

	require.Len(t, ch, 1)
	assert.Equal(t, 2, (<-ch).Data)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe()
	defer cleanup()

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Publish(Event{Name: "badges", Data: i})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestHub_CleanupClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe()

	cleanup()
	cleanup()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, hub.SubscriberCount())

	other, _ := hub.Subscribe()
	hub.Close()
	_, open = <-other
	assert.False(t, open)
}

func TestHub_ClosedHubRejectsSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Close()
	hub.Publish(Event{Name: "badges", Data: 1})

	ch, cleanup := hub.Subscribe()
	cleanup()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, hub.SubscriberCount())
}
