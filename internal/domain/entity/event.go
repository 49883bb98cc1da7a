package entity

type EventKind string

const (
	EventSellerRequest EventKind = "seller_request"
	EventBuyerResponse EventKind = "buyer_response"
	EventChatMessage   EventKind = "chat_message"
)

// Event is a decoded push frame. The concrete types below are the only
// implementations.
type Event interface {
	Kind() EventKind
}

// SellerRequestEvent announces a new (or redelivered) order request to the
// seller.
type SellerRequestEvent struct {
	Notification Notification
}

func (SellerRequestEvent) Kind() EventKind { return EventSellerRequest }

// BuyerResponseEvent tells the buyer a request changed status.
type BuyerResponseEvent struct {
	Notification Notification
}

func (BuyerResponseEvent) Kind() EventKind { return EventBuyerResponse }

type ChatMessageEvent struct {
	Message ChatMessage
}

func (ChatMessageEvent) Kind() EventKind { return EventChatMessage }
