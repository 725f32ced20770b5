package domain

import "time"

// OrderConfirmedEvent is published once an order has been persisted.
// PendingCartItemIDs lists cart items checkout could not remove.
type OrderConfirmedEvent struct {
	OrderID            string     `json:"order_id"`
	UserID             string     `json:"user_id"`
	Items              []CartItem `json:"items"`
	PendingCartItemIDs []string   `json:"pending_cart_item_ids,omitempty"`
	Timestamp          time.Time  `json:"timestamp"`
}
