package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedbazaar/internal/adapter/repository"
	domainrepo "seedbazaar/internal/domain/repository"
)

// plainRepo hides Reset so Logout falls back to deleting keys.
type plainRepo struct {
	domainrepo.StateRepository
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "U",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestSession_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStateRepository()
	token := signedToken(t, t0)

	s := NewSession(repo)
	require.NoError(t, s.SetCredentials(ctx, "U", token))

	restored := NewSession(repo)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, "U", restored.UserID())
	assert.Equal(t, token, restored.Token())
	assert.True(t, restored.ExpiresAt().Equal(t0))

	restored.now = func() time.Time { return t0.Add(-time.Minute) }
	assert.False(t, restored.Expired())
	restored.now = func() time.Time { return t0.Add(time.Minute) }
	assert.True(t, restored.Expired())
}

func TestSession_OpaqueTokenNeverExpires(t *testing.T) {
	s := NewSession(repository.NewMemoryStateRepository())
	require.NoError(t, s.SetCredentials(context.Background(), "U", "not-a-jwt"))

	assert.True(t, s.ExpiresAt().IsZero())
	assert.False(t, s.Expired())
}

func TestSession_RequiresUserID(t *testing.T) {
	s := NewSession(repository.NewMemoryStateRepository())
	assert.Error(t, s.SetCredentials(context.Background(), "", "token"))
}

func TestSession_InvalidateTokenKeepsUser(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStateRepository()
	s := NewSession(repo)
	require.NoError(t, s.SetCredentials(ctx, "U", "token"))

	require.NoError(t, s.InvalidateToken(ctx))

	assert.Equal(t, "U", s.UserID())
	assert.Empty(t, s.Token())
	_, found, err := repo.Get(ctx, domainrepo.KeyUserToken)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSession_LogoutWipesDeviceState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStateRepository()
	require.NoError(t, repo.Set(ctx, domainrepo.KeyLastReadTimestamp, "2024-05-01T10:00:00Z"))
	s := NewSession(repo)
	require.NoError(t, s.SetCredentials(ctx, "U", "token"))

	require.NoError(t, s.Logout(ctx))

	assert.Empty(t, s.UserID())
	for _, key := range []string{domainrepo.KeyUserID, domainrepo.KeyUserToken, domainrepo.KeyLastReadTimestamp} {
		_, found, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, key)
	}
}

func TestSession_LogoutWithoutReset(t *testing.T) {
	ctx := context.Background()
	inner := repository.NewMemoryStateRepository()
	require.NoError(t, inner.Set(ctx, domainrepo.KeyLastReadTimestamp, "2024-05-01T10:00:00Z"))
	s := NewSession(plainRepo{inner})
	require.NoError(t, s.SetCredentials(ctx, "U", "token"))

	require.NoError(t, s.Logout(ctx))

	_, found, _ := inner.Get(ctx, domainrepo.KeyUserID)
	assert.False(t, found)
	_, found, _ = inner.Get(ctx, domainrepo.KeyLastReadTimestamp)
	assert.True(t, found, "only the credentials are removed")
}
