package handler

import (
	"github.com/labstack/echo/v4"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/usecase"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/response"
)

type BadgeHandler struct {
	badges *usecase.BadgeUseCase
}

func NewBadgeHandler(badges *usecase.BadgeUseCase) *BadgeHandler {
	return &BadgeHandler{
		badges: badges,
	}
}

func (h *BadgeHandler) GetBadges(c echo.Context) error {
	return response.Success(c, h.badges.Counts())
}

func (h *BadgeHandler) ClearBadge(c echo.Context) error {
	category, err := categoryParam(c)
	if err != nil {
		return response.Error(c, err)
	}
	counts, err := h.badges.Clear(c.Request().Context(), category)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, counts)
}

func (h *BadgeHandler) DecrementBadge(c echo.Context) error {
	category, err := categoryParam(c)
	if err != nil {
		return response.Error(c, err)
	}
	counts, err := h.badges.Decrement(c.Request().Context(), category)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, counts)
}

func (h *BadgeHandler) ClearAllBadges(c echo.Context) error {
	counts, err := h.badges.ClearAll(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, counts)
}

func categoryParam(c echo.Context) (entity.Category, error) {
	category := entity.Category(c.Param("category"))
	if !category.Valid() {
		return "", errors.BadRequest("Unknown category "+string(category), entity.ErrUnknownCategory)
	}
	return category, nil
}
