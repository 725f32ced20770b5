package domain

import "time"

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
)

// Order is an immutable snapshot of a user's cart taken at checkout.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Items     []CartItem  `json:"items"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}
