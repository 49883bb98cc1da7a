package handler

import (
	"github.com/labstack/echo/v4"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/usecase"
	"seedbazaar/pkg/response"
)

type ScreenHandler struct {
	screens *usecase.ScreenUseCase
}

func NewScreenHandler(screens *usecase.ScreenUseCase) *ScreenHandler {
	return &ScreenHandler{
		screens: screens,
	}
}

// focusRequest is only read for the chat detail screen.
type focusRequest struct {
	PartnerID string `json:"partnerId"`
	ProductID int64  `json:"productId" validate:"gte=0"`
}

func (h *ScreenHandler) Focus(c echo.Context) error {
	var req focusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	var target *entity.ChatTarget
	if req.PartnerID != "" {
		target = &entity.ChatTarget{PartnerID: req.PartnerID, ProductID: req.ProductID}
	}

	st, err := h.screens.Focus(c.Request().Context(), entity.Screen(c.Param("screen")), target)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, st)
}

func (h *ScreenHandler) Blur(c echo.Context) error {
	st, err := h.screens.Blur(entity.Screen(c.Param("screen")))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, st)
}

func (h *ScreenHandler) Refresh(c echo.Context) error {
	st, err := h.screens.Refresh(c.Request().Context(), entity.Screen(c.Param("screen")))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, st)
}

func (h *ScreenHandler) State(c echo.Context) error {
	st, err := h.screens.State(entity.Screen(c.Param("screen")))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, st)
}
