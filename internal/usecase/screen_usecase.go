package usecase

import (
	"context"
	"sync"
	"time"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// ScreenTracker records which screens are focused. Every focus and blur
// bumps the screen's generation; work started under an older generation is
// stale when it completes.
type ScreenTracker struct {
	mu     sync.RWMutex
	states map[entity.Screen]*entity.ScreenState
}

func NewScreenTracker() *ScreenTracker {
	t := &ScreenTracker{states: make(map[entity.Screen]*entity.ScreenState)}
	for _, s := range entity.Screens {
		t.states[s] = &entity.ScreenState{Screen: s}
	}
	return t
}

// Focus marks screen focused and returns the new generation. target is only
// kept for the chat detail screen.
func (t *ScreenTracker) Focus(screen entity.Screen, target *entity.ChatTarget) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[screen]
	if !ok {
		return 0, entity.ErrUnknownScreen
	}
	st.Generation++
	st.Focused = true
	st.Loading = false
	st.LastError = ""
	st.Target = nil
	if screen == entity.ScreenChatDetail && target != nil {
		tg := *target
		st.Target = &tg
	}
	return st.Generation, nil
}

func (t *ScreenTracker) Blur(screen entity.Screen) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[screen]
	if !ok {
		return entity.ErrUnknownScreen
	}
	st.Generation++
	st.Focused = false
	st.Loading = false
	return nil
}

func (t *ScreenTracker) Generation(screen entity.Screen) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if st, ok := t.states[screen]; ok {
		return st.Generation
	}
	return 0
}

// IsCurrent reports whether screen is still focused under generation gen.
func (t *ScreenTracker) IsCurrent(screen entity.Screen, gen uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.states[screen]
	return ok && st.Focused && st.Generation == gen
}

func (t *ScreenTracker) Focused(screen entity.Screen) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.states[screen]
	return ok && st.Focused
}

// FocusedCategory reports whether any focused screen shows category c.
func (t *ScreenTracker) FocusedCategory(c entity.Category) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, st := range t.states {
		if st.Focused && st.Screen.Category() == c {
			return true
		}
	}
	return false
}

// FocusedScreens returns the focused screens whose category includes c.
func (t *ScreenTracker) FocusedScreens(c entity.Category) []entity.Screen {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var screens []entity.Screen
	for _, s := range entity.Screens {
		st := t.states[s]
		if st.Focused && s.Category().Includes(c) {
			screens = append(screens, s)
		}
	}
	return screens
}

// SetLoading is ignored when gen is no longer current.
func (t *ScreenTracker) SetLoading(screen entity.Screen, gen uint64, loading bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.states[screen]; ok && st.Generation == gen {
		st.Loading = loading
	}
}

// SetError records the last failure of generation gen and clears loading.
// A nil err clears the previous error.
func (t *ScreenTracker) SetError(screen entity.Screen, gen uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[screen]
	if !ok || st.Generation != gen {
		return
	}
	st.Loading = false
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
}

func (t *ScreenTracker) State(screen entity.Screen) (entity.ScreenState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.states[screen]
	if !ok {
		return entity.ScreenState{}, entity.ErrUnknownScreen
	}
	out := *st
	if st.Target != nil {
		tg := *st.Target
		out.Target = &tg
	}
	return out, nil
}

// Refresher is the part of the snapshot fetcher the screen use case needs.
type Refresher interface {
	Refresh(ctx context.Context, screen entity.Screen) error
}

// ScreenUseCase turns focus and blur reports from the UI into badge
// clearing, watermark updates and background refreshes.
type ScreenUseCase struct {
	tracker   *ScreenTracker
	badges    *BadgeCounters
	watermark *ReadWatermark
	loop      *EventLoop
	refresher Refresher

	// refreshes run in the background; tests swap this for a synchronous call
	goRefresh func(fn func())
}

func NewScreenUseCase(tracker *ScreenTracker, badges *BadgeCounters, watermark *ReadWatermark, loop *EventLoop, refresher Refresher) *ScreenUseCase {
	return &ScreenUseCase{
		tracker:   tracker,
		badges:    badges,
		watermark: watermark,
		loop:      loop,
		refresher: refresher,
		goRefresh: func(fn func()) { go fn() },
	}
}

// Focus clears the screen's badge and starts a refresh. Focusing the
// notifications screen also moves the read watermark to now.
func (uc *ScreenUseCase) Focus(ctx context.Context, screen entity.Screen, target *entity.ChatTarget) (entity.ScreenState, error) {
	if !screen.Valid() {
		return entity.ScreenState{}, errors.BadRequest("Unknown screen "+string(screen), entity.ErrUnknownScreen)
	}
	if screen == entity.ScreenChatDetail && (target == nil || target.PartnerID == "") {
		return entity.ScreenState{}, errors.BadRequest("Chat detail needs a partnerId", nil)
	}

	var readAt time.Time
	if screen == entity.ScreenNotifications {
		t, err := uc.watermark.PersistNow(ctx)
		if err != nil {
			logger.Warn("Failed to persist read watermark: %v", err)
		} else {
			readAt = t
		}
	}

	err := uc.loop.Do(ctx, func() error {
		if _, err := uc.tracker.Focus(screen, target); err != nil {
			return errors.BadRequest(err.Error(), err)
		}
		if screen == entity.ScreenNotifications {
			if !readAt.IsZero() {
				uc.watermark.Commit(readAt)
			}
			uc.badges.Recompute()
		}
		uc.badges.Clear(screen.Category())
		return nil
	})
	if err != nil {
		return entity.ScreenState{}, err
	}

	uc.goRefresh(func() {
		if err := uc.refresher.Refresh(context.Background(), screen); err != nil {
			logger.Debug("Refresh of %s after focus: %v", screen, err)
		}
	})

	return uc.tracker.State(screen)
}

func (uc *ScreenUseCase) Blur(screen entity.Screen) (entity.ScreenState, error) {
	if err := uc.tracker.Blur(screen); err != nil {
		return entity.ScreenState{}, errors.BadRequest("Unknown screen "+string(screen), err)
	}
	return uc.tracker.State(screen)
}

// Refresh is the pull to refresh gesture. It runs synchronously.
func (uc *ScreenUseCase) Refresh(ctx context.Context, screen entity.Screen) (entity.ScreenState, error) {
	if !screen.Valid() {
		return entity.ScreenState{}, errors.BadRequest("Unknown screen "+string(screen), entity.ErrUnknownScreen)
	}
	if err := uc.refresher.Refresh(ctx, screen); err != nil {
		return entity.ScreenState{}, err
	}
	return uc.tracker.State(screen)
}

func (uc *ScreenUseCase) State(screen entity.Screen) (entity.ScreenState, error) {
	st, err := uc.tracker.State(screen)
	if err != nil {
		return entity.ScreenState{}, errors.NotFound("Screen", err)
	}
	return st, nil
}
