package dto

import (
	"time"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/utils"
)

type ProductPayload struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	PricePerKg float64 `json:"pricePerKg"`
}

// RequestNotificationPayload is the order request nested inside a
// notification, or sent on its own when creating a request.
type RequestNotificationPayload struct {
	ID                int64   `json:"id,omitempty"`
	BuyerID           string  `json:"buyerId,omitempty"`
	SellerID          string  `json:"sellerId,omitempty"`
	ProductID         int64   `json:"productId,omitempty"`
	ProductName       string  `json:"productName,omitempty"`
	ProductPrice      float64 `json:"productPrice,omitempty"`
	BuyerName         string  `json:"buyerName,omitempty"`
	SellerName        string  `json:"sellerName,omitempty"`
	DesiredQuantity   float64 `json:"desiredQuantity,omitempty"`
	DesiredPricePerKg float64 `json:"desiredPricePerKg,omitempty"`
	RequestStatus     string  `json:"requestStatus,omitempty"`
	SendAt            string  `json:"sendAt,omitempty"`
	RespondedAt       string  `json:"respondedAt,omitempty"`
}

// NotificationPayload accepts both shapes the backend emits: the flat
// request DTO and the notification wrapper carrying requestNotificationDto.
type NotificationPayload struct {
	ID                     int64                       `json:"id"`
	UserID                 string                      `json:"userId,omitempty"`
	Description            string                      `json:"description,omitempty"`
	IsRead                 bool                        `json:"isRead,omitempty"`
	SendAt                 string                      `json:"sendAt,omitempty"`
	CreatedAt              string                      `json:"createdAt,omitempty"`
	UpdatedAt              string                      `json:"updatedAt,omitempty"`
	RespondedAt            string                      `json:"respondedAt,omitempty"`
	Status                 string                      `json:"status,omitempty"`
	RequestStatus          string                      `json:"requestStatus,omitempty"`
	BuyerID                string                      `json:"buyerId,omitempty"`
	SellerID               string                      `json:"sellerId,omitempty"`
	BuyerName              string                      `json:"buyerName,omitempty"`
	SellerName             string                      `json:"sellerName,omitempty"`
	ProductID              int64                       `json:"productId,omitempty"`
	ProductName            string                      `json:"productName,omitempty"`
	DesiredQuantity        float64                     `json:"desiredQuantity,omitempty"`
	DesiredPricePerKg      float64                     `json:"desiredPricePerKg,omitempty"`
	Product                *ProductPayload             `json:"product,omitempty"`
	RequestNotificationDto *RequestNotificationPayload `json:"requestNotificationDto,omitempty"`
}

// NotificationRecord is the normalised form checked at the decode boundary.
type NotificationRecord struct {
	ID                int64   `validate:"gt=0"`
	NotificationID    int64   `validate:"gte=0"`
	BuyerID           string  `validate:"required"`
	SellerID          string  `validate:"required"`
	Status            string  `validate:"required,oneof=PENDING ACCEPTED REJECTED"`
	BuyerName         string
	SellerName        string
	ProductID         int64   `validate:"gte=0"`
	ProductName       string
	ProductPrice      float64 `validate:"gte=0"`
	DesiredQuantity   float64 `validate:"gte=0"`
	DesiredPricePerKg float64 `validate:"gte=0"`
	Description       string
	Read              bool
	SendAt            string
	RespondedAt       string
}

// Normalize merges the two payload shapes. Values from the nested request
// take precedence since status transitions refer to the request id. The
// wrapper's own id is kept as NotificationID.
func (p NotificationPayload) Normalize() NotificationRecord {
	r := NotificationRecord{
		ID:                p.ID,
		BuyerID:           p.BuyerID,
		SellerID:          p.SellerID,
		Status:            firstNonEmpty(p.RequestStatus, p.Status),
		BuyerName:         p.BuyerName,
		SellerName:        p.SellerName,
		ProductID:         p.ProductID,
		ProductName:       p.ProductName,
		DesiredQuantity:   p.DesiredQuantity,
		DesiredPricePerKg: p.DesiredPricePerKg,
		Description:       p.Description,
		Read:              p.IsRead,
		SendAt:            firstNonEmpty(p.SendAt, p.CreatedAt),
		RespondedAt:       p.RespondedAt,
	}
	if p.Product != nil {
		if r.ProductID == 0 {
			r.ProductID = p.Product.ID
		}
		if r.ProductName == "" {
			r.ProductName = p.Product.Name
		}
		r.ProductPrice = firstNonZero(p.Product.PricePerKg, p.Product.Price)
	}

	if n := p.RequestNotificationDto; n != nil {
		if n.ID > 0 {
			r.NotificationID = p.ID
			r.ID = n.ID
		}
		r.BuyerID = firstNonEmpty(n.BuyerID, r.BuyerID)
		r.SellerID = firstNonEmpty(n.SellerID, r.SellerID)
		r.Status = firstNonEmpty(n.RequestStatus, r.Status)
		r.BuyerName = firstNonEmpty(n.BuyerName, r.BuyerName)
		r.SellerName = firstNonEmpty(n.SellerName, r.SellerName)
		r.ProductName = firstNonEmpty(n.ProductName, r.ProductName)
		r.SendAt = firstNonEmpty(n.SendAt, r.SendAt)
		r.RespondedAt = firstNonEmpty(n.RespondedAt, r.RespondedAt)
		if n.ProductID > 0 {
			r.ProductID = n.ProductID
		}
		r.ProductPrice = firstNonZero(n.ProductPrice, r.ProductPrice)
		r.DesiredQuantity = firstNonZero(n.DesiredQuantity, r.DesiredQuantity)
		r.DesiredPricePerKg = firstNonZero(n.DesiredPricePerKg, r.DesiredPricePerKg)
	}

	return r
}

// ToEntity validates the record and converts it. The category is left
// empty; a zero send time falls back to now.
func (r NotificationRecord) ToEntity(now time.Time) (entity.Notification, error) {
	if err := Validate(r); err != nil {
		return entity.Notification{}, errors.Decode("invalid notification payload", err)
	}

	sentAt, err := utils.ParseTimestamp(r.SendAt)
	if err != nil {
		return entity.Notification{}, errors.Decode("invalid sendAt", err)
	}
	if sentAt.IsZero() {
		sentAt = now
	}

	n := entity.Notification{
		ID:             r.ID,
		NotificationID: r.NotificationID,
		BuyerID:        r.BuyerID,
		BuyerName:      r.BuyerName,
		SellerID:       r.SellerID,
		SellerName:     r.SellerName,
		Product: entity.ProductRef{
			ID:         r.ProductID,
			Name:       r.ProductName,
			PricePerKg: r.ProductPrice,
		},
		DesiredQuantity:   r.DesiredQuantity,
		DesiredPricePerKg: r.DesiredPricePerKg,
		Description:       r.Description,
		Status:            entity.NotificationStatus(r.Status),
		SentAt:            sentAt,
		Read:              r.Read,
	}

	if r.RespondedAt != "" {
		respondedAt, err := utils.ParseTimestamp(r.RespondedAt)
		if err != nil {
			return entity.Notification{}, errors.Decode("invalid respondedAt", err)
		}
		n.RespondedAt = &respondedAt
	}

	return n, nil
}

// ToEntity normalises the payload and converts it.
func (p NotificationPayload) ToEntity(now time.Time) (entity.Notification, error) {
	return p.Normalize().ToEntity(now)
}

// NewOrderRequestPayload builds the body of the create endpoint.
func NewOrderRequestPayload(req entity.OrderRequest) RequestNotificationPayload {
	return RequestNotificationPayload{
		BuyerID:           req.BuyerID,
		BuyerName:         req.BuyerName,
		SellerID:          req.SellerID,
		SellerName:        req.SellerName,
		ProductID:         req.ProductID,
		ProductName:       req.ProductName,
		ProductPrice:      req.ProductPrice,
		DesiredQuantity:   req.DesiredQuantity,
		DesiredPricePerKg: req.DesiredPricePerKg,
		RequestStatus:     string(entity.StatusPending),
		SendAt:            utils.FormatTimestamp(time.Now()),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
