package usecase

import (
	"context"
	"sync"

	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

var errLoopStopped = errors.Internal("event loop stopped", nil)

// EventLoop runs posted closures one at a time on a single goroutine. Push
// frames, snapshot completions and user actions all go through it, so no
// task ever sees another one half applied.
type EventLoop struct {
	queue chan func()
	stop  chan struct{}
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewEventLoop(size int) *EventLoop {
	if size <= 0 {
		size = 256
	}
	return &EventLoop{
		queue: make(chan func(), size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the loop goroutine. It stops when ctx is done or Stop is
// called. Tasks posted before Start are kept and run once it starts.
func (l *EventLoop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

func (l *EventLoop) run(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case fn := <-l.queue:
			l.exec(fn)
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		}
	}
}

func (l *EventLoop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event loop task panicked: %v", r)
		}
	}()
	fn()
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop has been stopped. Never call it from a task with a full queue.
func (l *EventLoop) Post(fn func()) bool {
	select {
	case <-l.stop:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.stop:
		return false
	}
}

// Do runs fn on the loop and waits for its result. It must not be called
// from a task, that would deadlock.
func (l *EventLoop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !l.Post(func() { result <- fn() }) {
		return errLoopStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// the loop may have picked the task up right before exiting
		select {
		case err := <-result:
			return err
		default:
			return errLoopStopped
		}
	}
}

// Stop ends the loop. Queued tasks that have not started are dropped.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done is closed when the loop goroutine has exited.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}
