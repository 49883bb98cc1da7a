package usecase

import (
	"context"
	"sync"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/infrastructure/metrics"
)

// BadgeCounters keeps the unread count per category. Recompute derives the
// counts from the store and the watermark; Increment and the other setters
// give immediate feedback until the next recompute.
type BadgeCounters struct {
	mu        sync.RWMutex
	store     *ReconciliationStore
	watermark *ReadWatermark
	identity  Identity
	metrics   *metrics.Metrics
	counts    entity.BadgeCounts
	// acked holds, per category, the keys that were counted when the
	// category was last cleared.
	acked     map[entity.Category]map[string]struct{}
	listeners []func(entity.BadgeCounts)
}

func NewBadgeCounters(store *ReconciliationStore, watermark *ReadWatermark, identity Identity, m *metrics.Metrics) *BadgeCounters {
	acked := make(map[entity.Category]map[string]struct{}, len(entity.Categories))
	for _, c := range entity.Categories {
		acked[c] = make(map[string]struct{})
	}
	return &BadgeCounters{
		store:     store,
		watermark: watermark,
		identity:  identity,
		metrics:   m,
		acked:     acked,
	}
}

// OnChange registers fn to receive the counts after every change. fn runs
// synchronously and must not call back into the counters.
func (b *BadgeCounters) OnChange(fn func(entity.BadgeCounts)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *BadgeCounters) Counts() entity.BadgeCounts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts
}

func (b *BadgeCounters) Get(c entity.Category) int {
	return b.Counts().Get(c)
}

// qualifying returns the keys of the items that count as new for c.
func (b *BadgeCounters) qualifying(c entity.Category) []string {
	var keys []string

	if c == entity.CategoryChat {
		me := b.identity.UserID()
		if me == "" {
			return nil
		}
		for _, m := range b.store.ChatMessages() {
			if m.Confirmed() && m.ReceiverID == me && b.watermark.IsNew(m.Timestamp) {
				keys = append(keys, m.AckKey())
			}
		}
		return keys
	}

	for _, n := range b.store.Active(c) {
		if b.watermark.IsNew(n.EffectiveAt()) {
			keys = append(keys, n.AckKey())
		}
	}
	return keys
}

// Recompute sets every counter to the number of qualifying items that were
// not acknowledged by a clear.
func (b *BadgeCounters) Recompute() entity.BadgeCounts {
	qualifying := make(map[entity.Category][]string, len(entity.Categories))
	for _, c := range entity.Categories {
		qualifying[c] = b.qualifying(c)
	}

	b.mu.Lock()
	for _, c := range entity.Categories {
		current := make(map[string]struct{}, len(qualifying[c]))
		n := 0
		for _, k := range qualifying[c] {
			current[k] = struct{}{}
			if _, ok := b.acked[c][k]; !ok {
				n++
			}
		}
		// forget acknowledgements of items that no longer qualify
		for k := range b.acked[c] {
			if _, ok := current[k]; !ok {
				delete(b.acked[c], k)
			}
		}
		b.counts = b.counts.With(c, n)
	}
	return b.unlockAndNotify()
}

func (b *BadgeCounters) Increment(c entity.Category) entity.BadgeCounts {
	b.mu.Lock()
	b.counts = b.counts.With(c, b.counts.Get(c)+1)
	return b.unlockAndNotify()
}

// Decrement lowers c by one, never below zero.
func (b *BadgeCounters) Decrement(c entity.Category) entity.BadgeCounts {
	b.mu.Lock()
	b.counts = b.counts.With(c, b.counts.Get(c)-1)
	return b.unlockAndNotify()
}

// Set overrides c. Negative values are stored as zero.
func (b *BadgeCounters) Set(c entity.Category, n int) entity.BadgeCounts {
	b.mu.Lock()
	b.counts = b.counts.With(c, n)
	return b.unlockAndNotify()
}

// Clear zeroes c and acknowledges everything that currently counts, so the
// counter stays at zero until new qualifying data arrives.
func (b *BadgeCounters) Clear(c entity.Category) entity.BadgeCounts {
	keys := b.qualifying(c)

	b.mu.Lock()
	b.ackLocked(c, keys)
	b.counts = b.counts.With(c, 0)
	return b.unlockAndNotify()
}

func (b *BadgeCounters) ClearAll() entity.BadgeCounts {
	qualifying := make(map[entity.Category][]string, len(entity.Categories))
	for _, c := range entity.Categories {
		qualifying[c] = b.qualifying(c)
	}

	b.mu.Lock()
	for _, c := range entity.Categories {
		b.ackLocked(c, qualifying[c])
	}
	b.counts = entity.BadgeCounts{}
	return b.unlockAndNotify()
}

// Reset forgets counts and acknowledgements. Used on logout.
func (b *BadgeCounters) Reset() entity.BadgeCounts {
	b.mu.Lock()
	for _, c := range entity.Categories {
		b.acked[c] = make(map[string]struct{})
	}
	b.counts = entity.BadgeCounts{}
	return b.unlockAndNotify()
}

func (b *BadgeCounters) ackLocked(c entity.Category, keys []string) {
	set, ok := b.acked[c]
	if !ok {
		set = make(map[string]struct{})
		b.acked[c] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
}

// unlockAndNotify releases b.mu and publishes the counts outside the lock.
func (b *BadgeCounters) unlockAndNotify() entity.BadgeCounts {
	counts := b.counts
	listeners := append([]func(entity.BadgeCounts){}, b.listeners...)
	b.mu.Unlock()

	for _, c := range entity.Categories {
		b.metrics.SetBadge(string(c), counts.Get(c))
	}
	for _, fn := range listeners {
		fn(counts)
	}
	return counts
}

// BadgeUseCase runs the user's badge actions on the event loop, so they
// interleave with merges the same way everything else does.
type BadgeUseCase struct {
	badges *BadgeCounters
	loop   *EventLoop
}

func NewBadgeUseCase(badges *BadgeCounters, loop *EventLoop) *BadgeUseCase {
	return &BadgeUseCase{
		badges: badges,
		loop:   loop,
	}
}

func (uc *BadgeUseCase) Counts() entity.BadgeCounts {
	return uc.badges.Counts()
}

func (uc *BadgeUseCase) Clear(ctx context.Context, c entity.Category) (entity.BadgeCounts, error) {
	return uc.apply(ctx, func() entity.BadgeCounts { return uc.badges.Clear(c) })
}

func (uc *BadgeUseCase) Decrement(ctx context.Context, c entity.Category) (entity.BadgeCounts, error) {
	return uc.apply(ctx, func() entity.BadgeCounts { return uc.badges.Decrement(c) })
}

func (uc *BadgeUseCase) ClearAll(ctx context.Context) (entity.BadgeCounts, error) {
	return uc.apply(ctx, uc.badges.ClearAll)
}

func (uc *BadgeUseCase) apply(ctx context.Context, fn func() entity.BadgeCounts) (entity.BadgeCounts, error) {
	var counts entity.BadgeCounts
	err := uc.loop.Do(ctx, func() error {
		counts = fn()
		return nil
	})
	return counts, err
}
