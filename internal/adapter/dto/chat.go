package dto

import (
	"time"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/utils"
)

type ChatMessagePayload struct {
	ID                      int64           `json:"id,omitempty"`
	SenderID                string          `json:"senderId" validate:"required"`
	ReceiverID              string          `json:"receiverId" validate:"required"`
	SenderName              string          `json:"senderName,omitempty"`
	ReceiverName            string          `json:"receiverName,omitempty"`
	SenderProfileImageURL   string          `json:"senderProfileImageUrl,omitempty"`
	ReceiverProfileImageURL string          `json:"receiverProfileImageUrl,omitempty"`
	Content                 string          `json:"content" validate:"required"`
	Timestamp               string          `json:"timestamp,omitempty"`
	ProductID               int64           `json:"productId,omitempty"`
	Product                 *ProductPayload `json:"product,omitempty"`
}

// ToEntity validates the payload and converts it into a confirmed message.
// The conversation is always derived from the participants in the payload.
func (p ChatMessagePayload) ToEntity(now time.Time) (entity.ChatMessage, error) {
	if err := Validate(p); err != nil {
		return entity.ChatMessage{}, errors.Decode("invalid chat payload", err)
	}
	if p.ID < 0 {
		return entity.ChatMessage{}, errors.Decode("invalid chat payload", nil)
	}

	ts, err := utils.ParseTimestamp(p.Timestamp)
	if err != nil {
		return entity.ChatMessage{}, errors.Decode("invalid chat timestamp", err)
	}
	if ts.IsZero() {
		ts = now
	}

	productID := p.ProductID
	if productID == 0 && p.Product != nil {
		productID = p.Product.ID
	}

	return entity.ChatMessage{
		ID:           p.ID,
		SenderID:     p.SenderID,
		SenderName:   p.SenderName,
		ReceiverID:   p.ReceiverID,
		ReceiverName: p.ReceiverName,
		Content:      p.Content,
		Timestamp:    ts,
		ProductID:    productID,
		Delivery:     entity.DeliveryConfirmed,
	}, nil
}

type ProductIDPayload struct {
	ID int64 `json:"id"`
}

// ChatSendPayload is published to /app/chat.send. Product is omitted for
// chats that are not about a product.
type ChatSendPayload struct {
	SenderID   string            `json:"senderId"`
	ReceiverID string            `json:"receiverId"`
	Content    string            `json:"content"`
	Product    *ProductIDPayload `json:"product,omitempty"`
}

func NewChatSendPayload(m entity.ChatMessage) ChatSendPayload {
	p := ChatSendPayload{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
	}
	if m.ProductID > 0 {
		p.Product = &ProductIDPayload{ID: m.ProductID}
	}
	return p
}

type ConversationPayload struct {
	PartnerID       string  `json:"partnerId" validate:"required"`
	PartnerName     string  `json:"partnerName"`
	ProfileImageURL *string `json:"profileImageUrl"`
	LastMessage     string  `json:"lastMessage"`
	LastMessageTime string  `json:"lastMessageTime"`
}

func (p ConversationPayload) ToEntity() (entity.ConversationSummary, error) {
	if err := Validate(p); err != nil {
		return entity.ConversationSummary{}, errors.Decode("invalid conversation payload", err)
	}
	ts, err := utils.ParseTimestamp(p.LastMessageTime)
	if err != nil {
		return entity.ConversationSummary{}, errors.Decode("invalid lastMessageTime", err)
	}

	s := entity.ConversationSummary{
		PartnerID:       p.PartnerID,
		PartnerName:     p.PartnerName,
		LastMessage:     p.LastMessage,
		LastMessageTime: ts,
	}
	if p.ProfileImageURL != nil {
		s.ProfileImageURL = *p.ProfileImageURL
	}
	return s, nil
}
