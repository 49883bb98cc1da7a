package entity

type Screen string

const (
	ScreenSales         Screen = "sales"
	ScreenOrders        Screen = "orders"
	ScreenNotifications Screen = "notifications"
	ScreenChat          Screen = "chat"
	ScreenChatDetail    Screen = "chat_detail"
)

var Screens = []Screen{ScreenSales, ScreenOrders, ScreenNotifications, ScreenChat, ScreenChatDetail}

func (s Screen) Valid() bool {
	switch s {
	case ScreenSales, ScreenOrders, ScreenNotifications, ScreenChat, ScreenChatDetail:
		return true
	}
	return false
}

// Category is the badge a screen clears when it gains focus. The chat
// detail screen clears the chat badge like the conversation list does.
func (s Screen) Category() Category {
	switch s {
	case ScreenSales:
		return CategorySales
	case ScreenOrders:
		return CategoryOrders
	case ScreenNotifications:
		return CategoryNotifications
	case ScreenChat, ScreenChatDetail:
		return CategoryChat
	}
	return ""
}

// ChatTarget selects the conversation shown by the chat detail screen.
type ChatTarget struct {
	PartnerID string `json:"partnerId"`
	ProductID int64  `json:"productId,omitempty"`
}

// ScreenState is what the UI needs to render loading and retry affordances.
type ScreenState struct {
	Screen     Screen      `json:"screen"`
	Focused    bool        `json:"focused"`
	Generation uint64      `json:"generation"`
	Loading    bool        `json:"loading"`
	LastError  string      `json:"lastError,omitempty"`
	Target     *ChatTarget `json:"target,omitempty"`
}
