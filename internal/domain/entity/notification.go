package entity

import (
	"fmt"
	"time"
)

type NotificationStatus string

const (
	StatusPending  NotificationStatus = "PENDING"
	StatusAccepted NotificationStatus = "ACCEPTED"
	StatusRejected NotificationStatus = "REJECTED"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. PENDING is the only
// non-terminal status.
func (s NotificationStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

type Category string

const (
	CategorySales         Category = "sales"
	CategoryOrders        Category = "orders"
	CategoryChat          Category = "chat"
	CategoryNotifications Category = "notifications"
)

var Categories = []Category{CategorySales, CategoryOrders, CategoryChat, CategoryNotifications}

func (c Category) Valid() bool {
	switch c {
	case CategorySales, CategoryOrders, CategoryChat, CategoryNotifications:
		return true
	}
	return false
}

// Includes reports whether a notification filed under other belongs to the
// view c. The notifications view aggregates sales and orders.
func (c Category) Includes(other Category) bool {
	if c == CategoryNotifications {
		return other == CategorySales || other == CategoryOrders
	}
	return c == other
}

// CategoryFor derives the notification category from the current user's
// role in the request: sellers see it under sales, buyers under orders.
func CategoryFor(userID, buyerID, sellerID string) (Category, error) {
	switch {
	case userID == "":
		return "", ErrNoSession
	case userID == sellerID:
		return CategorySales, nil
	case userID == buyerID:
		return CategoryOrders, nil
	}
	return "", ErrNotParticipant
}

type ProductRef struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	PricePerKg float64 `json:"pricePerKg"`
}

// Notification is an order request between a buyer and a seller as seen by
// the current user.
type Notification struct {
	ID                int64              `json:"id"`
	NotificationID    int64              `json:"notificationId,omitempty"`
	Category          Category           `json:"category"`
	BuyerID           string             `json:"buyerId"`
	BuyerName         string             `json:"buyerName"`
	SellerID          string             `json:"sellerId"`
	SellerName        string             `json:"sellerName"`
	Product           ProductRef         `json:"product"`
	DesiredQuantity   float64            `json:"desiredQuantity"`
	DesiredPricePerKg float64            `json:"desiredPricePerKg"`
	Description       string             `json:"description,omitempty"`
	Status            NotificationStatus `json:"status"`
	SentAt            time.Time          `json:"sentAt"`
	RespondedAt       *time.Time         `json:"respondedAt,omitempty"`
	Read              bool               `json:"read"`
}

// EffectiveAt is the timestamp used for ordering and for the read
// watermark: the response time once answered, the send time before.
func (n *Notification) EffectiveAt() time.Time {
	if n.RespondedAt != nil && !n.RespondedAt.IsZero() {
		return *n.RespondedAt
	}
	return n.SentAt
}

// Counterpart returns the other party of the request from the perspective
// of the notification's category.
func (n *Notification) Counterpart() (string, string) {
	if n.Category == CategorySales {
		return n.BuyerID, n.BuyerName
	}
	return n.SellerID, n.SellerName
}

// ClearID is the id the backend clears by: the notification record id when
// the request arrived wrapped, the request id otherwise.
func (n *Notification) ClearID() int64 {
	if n.NotificationID > 0 {
		return n.NotificationID
	}
	return n.ID
}

// AckKey identifies the notification together with its status, so a status
// change counts as a new item for the badge.
func (n *Notification) AckKey() string {
	return fmt.Sprintf("n:%d:%s", n.ID, n.Status)
}

// FillFrom copies descriptive fields that are empty on n.
func (n *Notification) FillFrom(other *Notification) {
	if n.NotificationID == 0 {
		n.NotificationID = other.NotificationID
	}
	if n.BuyerName == "" {
		n.BuyerName = other.BuyerName
	}
	if n.SellerName == "" {
		n.SellerName = other.SellerName
	}
	if n.Product.ID == 0 {
		n.Product.ID = other.Product.ID
	}
	if n.Product.Name == "" {
		n.Product.Name = other.Product.Name
	}
	if n.Product.PricePerKg == 0 {
		n.Product.PricePerKg = other.Product.PricePerKg
	}
	if n.DesiredQuantity == 0 {
		n.DesiredQuantity = other.DesiredQuantity
	}
	if n.DesiredPricePerKg == 0 {
		n.DesiredPricePerKg = other.DesiredPricePerKg
	}
	if n.Description == "" {
		n.Description = other.Description
	}
	if n.SentAt.IsZero() {
		n.SentAt = other.SentAt
	}
}

// Overlay copies every descriptive field that is set on other. Status and
// timestamps are left alone.
func (n *Notification) Overlay(other *Notification) {
	if other.NotificationID != 0 {
		n.NotificationID = other.NotificationID
	}
	if other.BuyerName != "" {
		n.BuyerName = other.BuyerName
	}
	if other.SellerName != "" {
		n.SellerName = other.SellerName
	}
	if other.Product.ID != 0 {
		n.Product.ID = other.Product.ID
	}
	if other.Product.Name != "" {
		n.Product.Name = other.Product.Name
	}
	if other.Product.PricePerKg != 0 {
		n.Product.PricePerKg = other.Product.PricePerKg
	}
	if other.DesiredQuantity != 0 {
		n.DesiredQuantity = other.DesiredQuantity
	}
	if other.DesiredPricePerKg != 0 {
		n.DesiredPricePerKg = other.DesiredPricePerKg
	}
	if other.Description != "" {
		n.Description = other.Description
	}
}

// OrderRequest is what a buyer submits to open a new request.
type OrderRequest struct {
	BuyerID           string  `json:"buyerId"`
	BuyerName         string  `json:"buyerName,omitempty"`
	SellerID          string  `json:"sellerId"`
	SellerName        string  `json:"sellerName,omitempty"`
	ProductID         int64   `json:"productId"`
	ProductName       string  `json:"productName,omitempty"`
	ProductPrice      float64 `json:"productPrice,omitempty"`
	DesiredQuantity   float64 `json:"desiredQuantity"`
	DesiredPricePerKg float64 `json:"desiredPricePerKg"`
}
