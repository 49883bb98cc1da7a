package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"seedbazaar/internal/usecase"
	"seedbazaar/pkg/response"
)

// SessionManager signs users in and out of the agent.
type SessionManager interface {
	Login(ctx context.Context, userID, token string) error
	Logout(ctx context.Context) error
	Connected() bool
}

type SessionHandler struct {
	session *usecase.Session
	manager SessionManager
}

func NewSessionHandler(session *usecase.Session, manager SessionManager) *SessionHandler {
	return &SessionHandler{
		session: session,
		manager: manager,
	}
}

type loginRequest struct {
	UserID string `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

type sessionResponse struct {
	UserID    string     `json:"userId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Expired   bool       `json:"expired"`
	Connected bool       `json:"connected"`
}

func (h *SessionHandler) current() sessionResponse {
	resp := sessionResponse{
		UserID:    h.session.UserID(),
		Expired:   h.session.Expired(),
		Connected: h.manager.Connected(),
	}
	if exp := h.session.ExpiresAt(); !exp.IsZero() {
		resp.ExpiresAt = &exp
	}
	return resp
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	return response.Success(c, h.current())
}

func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.manager.Login(c.Request().Context(), req.UserID, req.Token); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, h.current())
}

func (h *SessionHandler) Logout(c echo.Context) error {
	if err := h.manager.Logout(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, h.current())
}
