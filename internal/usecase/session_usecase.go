package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// Session is the signed-in user as persisted on the device: the user id
// and the bearer token used for REST calls and the push connection.
type Session struct {
	mu        sync.RWMutex
	repo      repository.StateRepository
	userID    string
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewSession(repo repository.StateRepository) *Session {
	return &Session{
		repo: repo,
		now:  time.Now,
	}
}

// Load restores the session from the state repository.
func (s *Session) Load(ctx context.Context) error {
	userID, _, err := s.repo.Get(ctx, repository.KeyUserID)
	if err != nil {
		return err
	}
	token, _, err := s.repo.Get(ctx, repository.KeyUserToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.userID = userID
	s.token = token
	s.expiresAt = tokenExpiry(token)
	s.mu.Unlock()

	if userID != "" {
		logger.Info("Restored session for user %s", userID)
	}
	return nil
}

// SetCredentials persists a new sign-in.
func (s *Session) SetCredentials(ctx context.Context, userID, token string) error {
	if userID == "" {
		return errors.BadRequest("userId is required", nil)
	}
	if err := s.repo.Set(ctx, repository.KeyUserID, userID); err != nil {
		return err
	}
	if token != "" {
		if err := s.repo.Set(ctx, repository.KeyUserToken, token); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.userID = userID
	s.token = token
	s.expiresAt = tokenExpiry(token)
	s.mu.Unlock()
	return nil
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt is the exp claim of the token, zero when there is none.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Expired reports whether the token carries an exp claim in the past.
func (s *Session) Expired() bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && s.now().After(exp)
}

// InvalidateToken drops the token after the backend answered 401. The user
// id is kept so the UI can offer a sign-in for the same account.
func (s *Session) InvalidateToken(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	logger.Warn("Backend rejected the token, removing it")
	return s.repo.Delete(ctx, repository.KeyUserToken)
}

// Logout forgets the user. Backends that can wipe the device state do so,
// which also drops the read watermark.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.userID = ""
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if resetter, ok := s.repo.(repository.StateResetter); ok {
		return resetter.Reset(ctx)
	}
	if err := s.repo.Delete(ctx, repository.KeyUserToken); err != nil {
		return err
	}
	return s.repo.Delete(ctx, repository.KeyUserID)
}

// tokenExpiry reads the exp claim without verifying the signature; only
// the backend can verify the token.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Debug("Token is not a JWT: %v", err)
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
