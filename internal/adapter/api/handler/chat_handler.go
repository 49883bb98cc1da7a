package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"seedbazaar/internal/usecase"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	Content     string `json:"content" validate:"required,max=2000"`
	PartnerName string `json:"partnerName"`
	ProductID   int64  `json:"productId" validate:"gte=0"`
}

func (h *ChatHandler) GetConversations(c echo.Context) error {
	return response.Success(c, h.chatUseCase.Conversations())
}

// GetMessages returns the local conversation with a partner. productId
// selects a product chat, omitted means the general one.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	var productID int64
	if s := c.QueryParam("productId"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil || parsed < 0 {
			return response.Error(c, errors.BadRequest("Invalid productId", err))
		}
		productID = parsed
	}

	msgs, err := h.chatUseCase.Messages(c.Param("partnerId"), productID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, msgs)
}

func (h *ChatHandler) GetMessage(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	m, err := h.chatUseCase.Message(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, m)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	m, err := h.chatUseCase.SendMessage(c.Request().Context(), usecase.SendMessageInput{
		PartnerID:   c.Param("partnerId"),
		PartnerName: req.PartnerName,
		Content:     req.Content,
		ProductID:   req.ProductID,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, m)
}
