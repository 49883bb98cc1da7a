package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/usecase"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/response"
	"seedbazaar/pkg/utils"
)

type NotificationHandler struct {
	notifications *usecase.NotificationUseCase
}

func NewNotificationHandler(notifications *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
	}
}

type respondRequest struct {
	Status string `json:"status" validate:"required,oneof=ACCEPTED REJECTED"`
}

type createRequestRequest struct {
	SellerID          string  `json:"sellerId" validate:"required"`
	SellerName        string  `json:"sellerName"`
	BuyerName         string  `json:"buyerName"`
	ProductID         int64   `json:"productId" validate:"required,gt=0"`
	ProductName       string  `json:"productName"`
	ProductPrice      float64 `json:"productPrice" validate:"gte=0"`
	DesiredQuantity   float64 `json:"desiredQuantity" validate:"required,gt=0"`
	DesiredPricePerKg float64 `json:"desiredPricePerKg" validate:"gte=0"`
}

func (h *NotificationHandler) List(c echo.Context) error {
	category := entity.CategoryNotifications
	if q := c.QueryParam("category"); q != "" {
		category = entity.Category(q)
	}

	list, err := h.notifications.List(category)
	if err != nil {
		return response.Error(c, err)
	}
	if c.QueryParam("page") == "" {
		return response.Success(c, list)
	}

	params := utils.GetPaginationParams(c)
	start, end := params.Window(len(list))
	return response.Paginated(c, list[start:end], int64(len(list)), params.Page, params.PageSize)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	watermark, err := h.notifications.MarkAllRead(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{
		"lastReadTimestamp": watermark,
	})
}

func (h *NotificationHandler) Clear(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.notifications.Clear(c.Request().Context(), id); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{"cleared": id})
}

func (h *NotificationHandler) ClearAll(c echo.Context) error {
	if err := h.notifications.ClearAll(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{"cleared": "all"})
}

func (h *NotificationHandler) Respond(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	n, err := h.notifications.Respond(c.Request().Context(), id, entity.NotificationStatus(req.Status))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, n)
}

func (h *NotificationHandler) CreateRequest(c echo.Context) error {
	var req createRequestRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	err := h.notifications.Create(c.Request().Context(), entity.OrderRequest{
		BuyerName:         req.BuyerName,
		SellerID:          req.SellerID,
		SellerName:        req.SellerName,
		ProductID:         req.ProductID,
		ProductName:       req.ProductName,
		ProductPrice:      req.ProductPrice,
		DesiredQuantity:   req.DesiredQuantity,
		DesiredPricePerKg: req.DesiredPricePerKg,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Accepted(c, map[string]interface{}{"status": "PENDING"})
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("Invalid id", err)
	}
	return id, nil
}
