package middleware

import (
	"github.com/labstack/echo/v4"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/response"
)

const ContextUserID = "uid"

// Identity is the signed-in user of the agent.
type Identity interface {
	UserID() string
}

type AuthMiddleware struct {
	identity Identity
}

func NewAuthMiddleware(identity Identity) *AuthMiddleware {
	return &AuthMiddleware{
		identity: identity,
	}
}

// RequireSession rejects requests while nobody is signed in and puts the
// user id on the context otherwise.
func (m *AuthMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := m.identity.UserID()
		if userID == "" {
			return response.Error(c, errors.Unauthorized("Sign in first", entity.ErrNoSession))
		}

		c.Set(ContextUserID, userID)
		return next(c)
	}
}
