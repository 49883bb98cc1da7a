package entity

import (
	"fmt"
	"time"
)

type DeliveryState string

const (
	// DeliveryPending is a local echo that has not reached the transport yet.
	DeliveryPending DeliveryState = "pending"
	// DeliverySent was accepted by the transport but the backend copy has
	// not been seen.
	DeliverySent DeliveryState = "sent"
	// DeliveryConfirmed came from the backend, by push or history.
	DeliveryConfirmed DeliveryState = "confirmed"
)

type ChatMessage struct {
	ID           int64         `json:"id"`
	TempID       string        `json:"tempId,omitempty"`
	SenderID     string        `json:"senderId"`
	SenderName   string        `json:"senderName,omitempty"`
	ReceiverID   string        `json:"receiverId"`
	ReceiverName string        `json:"receiverName,omitempty"`
	Content      string        `json:"content"`
	Timestamp    time.Time     `json:"timestamp"`
	ProductID    int64         `json:"productId,omitempty"`
	Delivery     DeliveryState `json:"delivery"`
}

func (m *ChatMessage) Confirmed() bool {
	return m.Delivery == DeliveryConfirmed
}

// Local reports whether the message only exists on this device. Local
// messages carry negative ids.
func (m *ChatMessage) Local() bool {
	return m.ID < 0
}

func (m *ChatMessage) Conversation() ConversationKey {
	return NewConversationKey(m.SenderID, m.ReceiverID, m.ProductID)
}

// Partner returns the participant that is not me.
func (m *ChatMessage) Partner(me string) (string, string) {
	if m.SenderID == me {
		return m.ReceiverID, m.ReceiverName
	}
	return m.SenderID, m.SenderName
}

func (m *ChatMessage) AckKey() string {
	return fmt.Sprintf("c:%s:%d", m.Conversation(), m.ID)
}

// ConversationKey is the unordered participant pair plus the product the
// conversation is about. ProductID is 0 for general chats.
type ConversationKey struct {
	A         string `json:"a"`
	B         string `json:"b"`
	ProductID int64  `json:"productId"`
}

func NewConversationKey(x, y string, productID int64) ConversationKey {
	if y < x {
		x, y = y, x
	}
	return ConversationKey{A: x, B: y, ProductID: productID}
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%s|%s|%d", k.A, k.B, k.ProductID)
}

func (k ConversationKey) Has(userID string) bool {
	return k.A == userID || k.B == userID
}

type ConversationSummary struct {
	PartnerID       string    `json:"partnerId"`
	PartnerName     string    `json:"partnerName"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
}
