package usecase

import (
	"context"
	"sync"
	"time"

	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/logger"
	"seedbazaar/pkg/utils"
)

// ReadWatermark is the persisted "read up to" timestamp. The zero value
// means nothing has been read yet.
//
// Writers serialize on persistMu for the storage round trip; mu only
// guards the in-memory value, so IsNew never waits on storage.
type ReadWatermark struct {
	persistMu sync.Mutex
	stored    time.Time

	mu    sync.RWMutex
	repo  repository.StateRepository
	value time.Time
	now   func() time.Time
}

func NewReadWatermark(repo repository.StateRepository) *ReadWatermark {
	return &ReadWatermark{
		repo: repo,
		now:  time.Now,
	}
}

// Load reads the stored value. An unparseable value is logged and treated
// as absent.
func (w *ReadWatermark) Load(ctx context.Context) error {
	raw, found, err := w.repo.Get(ctx, repository.KeyLastReadTimestamp)
	if err != nil {
		return err
	}

	var t time.Time
	if found {
		t, err = utils.ParseTimestamp(raw)
		if err != nil {
			logger.Warn("Ignoring unreadable %s %q: %v", repository.KeyLastReadTimestamp, raw, err)
			t = time.Time{}
		}
	}

	w.persistMu.Lock()
	w.stored = t
	w.persistMu.Unlock()

	w.mu.Lock()
	w.value = t
	w.mu.Unlock()
	return nil
}

func (w *ReadWatermark) Get() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value
}

// IsNew reports whether t lies after the watermark.
func (w *ReadWatermark) IsNew(t time.Time) bool {
	wm := w.Get()
	return wm.IsZero() || t.After(wm)
}

func (w *ReadWatermark) MarkReadNow(ctx context.Context) (time.Time, error) {
	return w.Advance(ctx, w.now())
}

// PersistNow stores the current time as the watermark without moving the
// in-memory value. Commit the returned time to make it visible.
func (w *ReadWatermark) PersistNow(ctx context.Context) (time.Time, error) {
	t := w.now()
	return t, w.Persist(ctx, t)
}

// Persist stores t when it lies after the last stored value. Stored values
// only move forward.
func (w *ReadWatermark) Persist(ctx context.Context, t time.Time) error {
	w.persistMu.Lock()
	defer w.persistMu.Unlock()

	if !t.After(w.stored) {
		return nil
	}
	if err := w.repo.Set(ctx, repository.KeyLastReadTimestamp, utils.FormatTimestamp(t)); err != nil {
		return err
	}
	w.stored = t.UTC()
	return nil
}

// Commit moves the in-memory value to t when t lies after it.
func (w *ReadWatermark) Commit(t time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t.After(w.value) {
		w.value = t.UTC()
	}
	return w.value
}

// Advance persists t and then moves the watermark to it. A t that is not
// after the current value leaves everything untouched.
func (w *ReadWatermark) Advance(ctx context.Context, t time.Time) (time.Time, error) {
	current := w.Get()
	if !t.After(current) {
		return current, nil
	}
	if err := w.Persist(ctx, t); err != nil {
		return w.Get(), err
	}
	return w.Commit(t), nil
}

// Reset forgets the in-memory value. The stored key is left to the caller.
func (w *ReadWatermark) Reset() {
	w.persistMu.Lock()
	w.stored = time.Time{}
	w.persistMu.Unlock()

	w.mu.Lock()
	w.value = time.Time{}
	w.mu.Unlock()
}
