package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedbazaar/internal/adapter/repository"
	domainrepo "seedbazaar/internal/domain/repository"
)

// slowStateRepository holds every Set until release is closed.
type slowStateRepository struct {
	domainrepo.StateRepository
	entered chan struct{}
	release chan struct{}
}

func (r *slowStateRepository) Set(ctx context.Context, key, value string) error {
	r.entered <- struct{}{}
	<-r.release
	return r.StateRepository.Set(ctx, key, value)
}

func TestReadWatermark_AbsentMeansEverythingIsNew(t *testing.T) {
	wm := NewReadWatermark(repository.NewMemoryStateRepository())
	require.NoError(t, wm.Load(context.Background()))

	assert.True(t, wm.Get().IsZero())
	assert.True(t, wm.IsNew(time.Time{}.Add(time.Second)))
}

func TestReadWatermark_PersistsAndNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStateRepository()
	wm := NewReadWatermark(repo)

	got, err := wm.Advance(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, t0, got)

	raw, found, err := repo.Get(ctx, domainrepo.KeyLastReadTimestamp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2024-05-01T10:00:00Z", raw)

	got, err = wm.Advance(ctx, t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0, got)

	assert.False(t, wm.IsNew(t0))
	assert.True(t, wm.IsNew(t0.Add(time.Nanosecond)))

	// a fresh instance reads the stored value back
	restarted := NewReadWatermark(repo)
	require.NoError(t, restarted.Load(ctx))
	assert.True(t, restarted.Get().Equal(t0))
}

func TestReadWatermark_MarkReadNow(t *testing.T) {
	wm := NewReadWatermark(repository.NewMemoryStateRepository())
	wm.now = func() time.Time { return t0 }

	got, err := wm.MarkReadNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0, got)

	wm.now = func() time.Time { return t0.Add(-time.Minute) }
	got, err = wm.MarkReadNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0, got, "a clock stepping back leaves the watermark alone")
}

func TestReadWatermark_UnreadableValueIsIgnored(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStateRepository()
	require.NoError(t, repo.Set(ctx, domainrepo.KeyLastReadTimestamp, "last tuesday"))

	wm := NewReadWatermark(repo)
	require.NoError(t, wm.Load(ctx))
	assert.True(t, wm.Get().IsZero())
}

func TestReadWatermark_ReadersDoNotWaitOnStorage(t *testing.T) {
	repo := &slowStateRepository{
		StateRepository: repository.NewMemoryStateRepository(),
		entered:         make(chan struct{}, 1),
		release:         make(chan struct{}),
	}
	wm := NewReadWatermark(repo)

	done := make(chan error, 1)
	go func() {
		_, err := wm.Advance(context.Background(), t0)
		done <- err
	}()
	<-repo.entered

	read := make(chan time.Time, 1)
	go func() { read <- wm.Get() }()
	select {
	case got := <-read:
		assert.True(t, got.IsZero(), "the value moves only after it is stored")
	case <-time.After(time.Second):
		t.Fatal("Get blocked behind a storage write")
	}
	assert.True(t, wm.IsNew(t0))

	close(repo.release)
	require.NoError(t, <-done)
	assert.Equal(t, t0, wm.Get())
	assert.False(t, wm.IsNew(t0))
}

func TestReadWatermark_PersistThenCommit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStateRepository()
	wm := NewReadWatermark(repo)
	wm.now = func() time.Time { return t0 }

	at, err := wm.PersistNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0, at)
	assert.True(t, wm.Get().IsZero(), "persisting alone does not move the value")

	raw, found, err := repo.Get(ctx, domainrepo.KeyLastReadTimestamp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2024-05-01T10:00:00Z", raw)

	assert.Equal(t, t0, wm.Commit(at))
	assert.Equal(t, t0, wm.Commit(t0.Add(-time.Hour)), "commit never moves back")

	// an older time is not written over a newer stored one
	require.NoError(t, wm.Persist(ctx, t0.Add(-time.Minute)))
	raw, _, err = repo.Get(ctx, domainrepo.KeyLastReadTimestamp)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00Z", raw)
}
