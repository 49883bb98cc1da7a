package entity

type BadgeCounts struct {
	Sales         int `json:"sales"`
	Orders        int `json:"orders"`
	Chat          int `json:"chat"`
	Notifications int `json:"notifications"`
}

func (b BadgeCounts) Get(c Category) int {
	switch c {
	case CategorySales:
		return b.Sales
	case CategoryOrders:
		return b.Orders
	case CategoryChat:
		return b.Chat
	case CategoryNotifications:
		return b.Notifications
	}
	return 0
}

// With returns a copy with category c set to n, floored at zero.
func (b BadgeCounts) With(c Category, n int) BadgeCounts {
	if n < 0 {
		n = 0
	}
	switch c {
	case CategorySales:
		b.Sales = n
	case CategoryOrders:
		b.Orders = n
	case CategoryChat:
		b.Chat = n
	case CategoryNotifications:
		b.Notifications = n
	}
	return b
}
