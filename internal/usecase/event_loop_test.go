package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoop_RunsTasksInOrder(t *testing.T) {
	loop := NewEventLoop(8)
	var got []int

	// posted before Start, kept until the loop runs
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, loop.Post(func() { got = append(got, i) }))
	}
	loop.Start(context.Background())
	defer loop.Stop()

	require.NoError(t, loop.Do(context.Background(), func() error { return nil }))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestEventLoop_DoReturnsTaskError(t *testing.T) {
	loop := NewEventLoop(1)
	loop.Start(context.Background())
	defer loop.Stop()

	boom := errors.New("boom")
	assert.ErrorIs(t, loop.Do(context.Background(), func() error { return boom }), boom)
}

func TestEventLoop_SurvivesPanics(t *testing.T) {
	loop := NewEventLoop(4)
	loop.Start(context.Background())
	defer loop.Stop()

	require.True(t, loop.Post(func() { panic("task failed") }))
	ran := false
	require.NoError(t, loop.Do(context.Background(), func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestEventLoop_StopRejectsNewWork(t *testing.T) {
	loop := NewEventLoop(4)
	loop.Start(context.Background())
	loop.Stop()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}

	assert.False(t, loop.Post(func() {}))
	assert.Error(t, loop.Do(context.Background(), func() error { return nil }))
}

func TestEventLoop_DoHonoursContext(t *testing.T) {
	loop := NewEventLoop(4)
	loop.Start(context.Background())
	defer loop.Stop()

	release := make(chan struct{})
	require.True(t, loop.Post(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
