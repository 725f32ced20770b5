package messaging

const (
	// TopicOrderConfirmed carries domain.OrderConfirmedEvent keyed by order id.
	TopicOrderConfirmed = "order.confirmed"

	GroupCartCleanup = "cart-cleanup-worker"
)
