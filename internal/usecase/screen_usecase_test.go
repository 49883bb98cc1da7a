package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedbazaar/internal/domain/entity"
	apperrors "seedbazaar/pkg/errors"
)

func newTestScreens(t *testing.T, userID string) (*ScreenUseCase, *harness) {
	h := newHarness(t, userID)
	uc := NewScreenUseCase(h.screens, h.badges, h.watermark, h.loop, h.fetcher)
	uc.goRefresh = func(fn func()) { fn() }
	return uc, h
}

func TestScreenTracker_Generations(t *testing.T) {
	tr := NewScreenTracker()

	gen, err := tr.Focus(entity.ScreenOrders, nil)
	require.NoError(t, err)
	assert.True(t, tr.IsCurrent(entity.ScreenOrders, gen))

	require.NoError(t, tr.Blur(entity.ScreenOrders))
	assert.False(t, tr.IsCurrent(entity.ScreenOrders, gen))

	again, err := tr.Focus(entity.ScreenOrders, nil)
	require.NoError(t, err)
	assert.Greater(t, again, gen)
	assert.False(t, tr.IsCurrent(entity.ScreenOrders, gen))

	// updates for an old generation are ignored
	tr.SetLoading(entity.ScreenOrders, gen, true)
	st, _ := tr.State(entity.ScreenOrders)
	assert.False(t, st.Loading)

	_, err = tr.Focus("settings", nil)
	assert.ErrorIs(t, err, entity.ErrUnknownScreen)
}

func TestScreenTracker_FocusedScreens(t *testing.T) {
	tr := NewScreenTracker()
	_, _ = tr.Focus(entity.ScreenSales, nil)
	_, _ = tr.Focus(entity.ScreenNotifications, nil)

	assert.Equal(t, []entity.Screen{entity.ScreenSales, entity.ScreenNotifications}, tr.FocusedScreens(entity.CategorySales))
	assert.Equal(t, []entity.Screen{entity.ScreenNotifications}, tr.FocusedScreens(entity.CategoryOrders))
	assert.Empty(t, tr.FocusedScreens(entity.CategoryChat))
	assert.True(t, tr.FocusedCategory(entity.CategorySales))
	assert.False(t, tr.FocusedCategory(entity.CategoryOrders))
}

func TestScreenFocus_ClearsBadgeAndRefreshes(t *testing.T) {
	uc, h := newTestScreens(t, "U")
	h.seed(t, request(1, entity.StatusPending, "B", "U", t0))
	h.notifRepo.received = []entity.Notification{
		request(1, entity.StatusPending, "B", "U", t0),
		request(2, entity.StatusPending, "C", "U", t0),
	}
	require.Equal(t, 1, h.badges.Get(entity.CategorySales))

	st, err := uc.Focus(context.Background(), entity.ScreenSales, nil)
	require.NoError(t, err)

	assert.True(t, st.Focused)
	assert.Equal(t, 0, h.badges.Get(entity.CategorySales))
	assert.Len(t, h.store.Active(entity.CategorySales), 2, "focus triggers a refresh")
	assert.Equal(t, 2, h.badges.Get(entity.CategoryNotifications))
}

func TestScreenFocus_NotificationsMarksRead(t *testing.T) {
	uc, h := newTestScreens(t, "U")
	h.seed(t,
		request(1, entity.StatusPending, "B", "U", t0),
		request(2, entity.StatusPending, "U", "S", t0),
	)
	h.watermark.now = func() time.Time { return t0.Add(time.Hour) }

	_, err := uc.Focus(context.Background(), entity.ScreenNotifications, nil)
	require.NoError(t, err)

	assert.Equal(t, t0.Add(time.Hour), h.watermark.Get())
	assert.Equal(t, entity.BadgeCounts{}, h.badges.Counts())
}

func TestScreenFocus_AppliedOnLoop(t *testing.T) {
	uc, h := newTestScreens(t, "U")
	h.seed(t,
		request(1, entity.StatusPending, "B", "U", t0),
		request(2, entity.StatusPending, "U", "S", t0),
	)
	h.watermark.now = func() time.Time { return t0.Add(time.Hour) }
	require.Equal(t, 2, h.badges.Get(entity.CategoryNotifications))

	release := make(chan struct{})
	require.True(t, h.loop.Post(func() { <-release }))

	done := make(chan error, 1)
	go func() {
		_, err := uc.Focus(context.Background(), entity.ScreenNotifications, nil)
		done <- err
	}()

	assert.Never(t, func() bool {
		st, _ := h.screens.State(entity.ScreenNotifications)
		return st.Focused || !h.watermark.Get().IsZero() || h.badges.Get(entity.CategoryNotifications) != 2
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-done)
	st, _ := h.screens.State(entity.ScreenNotifications)
	assert.True(t, st.Focused)
	assert.Equal(t, t0.Add(time.Hour), h.watermark.Get())
	assert.Equal(t, entity.BadgeCounts{}, h.badges.Counts())
}

func TestScreenFocus_ChatDetailNeedsPartner(t *testing.T) {
	uc, h := newTestScreens(t, "A")

	_, err := uc.Focus(context.Background(), entity.ScreenChatDetail, nil)
	assert.True(t, apperrors.Is(err, apperrors.CodeBadRequest))

	h.chatRepo.history["B"] = []entity.ChatMessage{chatMsg(1, "B", "A", "hi", t0)}
	st, err := uc.Focus(context.Background(), entity.ScreenChatDetail, &entity.ChatTarget{PartnerID: "B"})
	require.NoError(t, err)
	require.NotNil(t, st.Target)
	assert.Equal(t, "B", st.Target.PartnerID)
	assert.Len(t, h.store.Messages(entity.NewConversationKey("A", "B", 0)), 1)
}

func TestScreenBlurThenRefresh(t *testing.T) {
	uc, _ := newTestScreens(t, "U")

	_, err := uc.Focus(context.Background(), entity.ScreenOrders, nil)
	require.NoError(t, err)
	st, err := uc.Blur(entity.ScreenOrders)
	require.NoError(t, err)
	assert.False(t, st.Focused)

	_, err = uc.Refresh(context.Background(), entity.ScreenOrders)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	_, err = uc.Refresh(context.Background(), "settings")
	assert.True(t, apperrors.Is(err, apperrors.CodeBadRequest))

	_, err = uc.State("settings")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
