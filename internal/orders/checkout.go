package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

// DefaultFinishTimeout bounds cart cleanup and event publishing once the
// order is stored.
const DefaultFinishTimeout = 15 * time.Second

var (
	tracer = otel.Tracer("orders/checkout")
	meter  = otel.Meter("orders/checkout")
)

// ErrPartialCheckout matches a PartialCheckoutError.
var ErrPartialCheckout = errors.New("order created, cart cleanup incomplete")

type CleanupFailure struct {
	CartItemID string
	Err        error
}

// PartialCheckoutError means the order was persisted but some cart items
// could not be removed. The order stands; nothing is rolled back.
type PartialCheckoutError struct {
	OrderID  string
	Failures []CleanupFailure
}

func (e *PartialCheckoutError) Error() string {
	return fmt.Sprintf("order %s created but %d cart item(s) could not be removed", e.OrderID, len(e.Failures))
}

func (e *PartialCheckoutError) Unwrap() error {
	return ErrPartialCheckout
}

type CartStore interface {
	List(ctx context.Context, userID string) ([]domain.CartItem, error)
	Delete(ctx context.Context, userID, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Result struct {
	Order              domain.Order
	PendingCartItemIDs []string
}

// Checkout turns a user's cart into an order. The steps are separate store
// calls with no isolation: two concurrent checkouts for one user can both
// read the same cart and both create an order.
type Checkout struct {
	cart      CartStore
	orders    *OrderRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	finishTimeout time.Duration

	attempts        metric.Int64Counter
	cleanupFailures metric.Int64Counter
}

// NewCheckout accepts a nil publisher, in which case no events are sent.
func NewCheckout(cart CartStore, orders *OrderRepository, publisher Publisher, logger *slog.Logger) (*Checkout, error) {
	attempts, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	cleanupFailures, err := meter.Int64Counter("checkout.cleanup_failures",
		metric.WithDescription("Cart items left behind after their order was created"),
	)
	if err != nil {
		return nil, err
	}

	return &Checkout{
		cart:            cart,
		orders:          orders,
		publisher:       publisher,
		logger:          logger,
		now:             time.Now,
		finishTimeout:   DefaultFinishTimeout,
		attempts:        attempts,
		cleanupFailures: cleanupFailures,
	}, nil
}

// Run returns domain.ErrEmptyCart without writing anything when the cart is
// empty. When cart cleanup fails after the order is stored, it returns both
// the Result and a *PartialCheckoutError.
func (c *Checkout) Run(ctx context.Context, userID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	items, err := c.cart.List(ctx, userID)
	if err != nil {
		c.record(ctx, span, "failed", err)
		return nil, fmt.Errorf("read cart: %w", err)
	}

	if len(items) == 0 {
		c.record(ctx, span, "empty", nil)
		return nil, domain.ErrEmptyCart
	}

	order, err := c.orders.Save(ctx, domain.Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     slices.Clone(items),
		Status:    domain.OrderStatusConfirmed,
		CreatedAt: c.now().UTC(),
	})
	if err != nil {
		c.record(ctx, span, "failed", err)
		return nil, fmt.Errorf("save order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int("order.items", len(order.Items)))

	// The order is stored; finishing must not depend on the caller staying
	// connected, or leftovers would go unreported to the worker.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.finishTimeout)
	defer cancel()

	failures := c.clearCart(ctx, userID, items)

	result := &Result{Order: order}
	for _, f := range failures {
		result.PendingCartItemIDs = append(result.PendingCartItemIDs, f.CartItemID)
	}

	c.publish(ctx, result)

	if len(failures) > 0 {
		perr := &PartialCheckoutError{OrderID: order.ID, Failures: failures}
		c.cleanupFailures.Add(ctx, int64(len(failures)))
		c.record(ctx, span, "partial", perr)
		c.logger.WarnContext(ctx, "order created with cart items left behind",
			"order_id", order.ID, "user_id", userID, "pending", result.PendingCartItemIDs)
		return result, perr
	}

	c.record(ctx, span, "complete", nil)
	c.logger.InfoContext(ctx, "order created", "order_id", order.ID, "user_id", userID, "items", len(order.Items))
	return result, nil
}

// clearCart attempts every deletion even when earlier ones fail. An item that
// is already gone counts as removed.
func (c *Checkout) clearCart(ctx context.Context, userID string, items []domain.CartItem) []CleanupFailure {
	var failures []CleanupFailure
	for _, item := range items {
		err := c.cart.Delete(ctx, userID, item.ID)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound):
			c.logger.InfoContext(ctx, "cart item already removed", "id", item.ID, "user_id", userID)
		default:
			c.logger.ErrorContext(ctx, "failed to remove cart item after checkout", "error", err, "id", item.ID, "user_id", userID)
			failures = append(failures, CleanupFailure{CartItemID: item.ID, Err: err})
		}
	}
	return failures
}

func (c *Checkout) publish(ctx context.Context, result *Result) {
	if c.publisher == nil {
		return
	}

	event := domain.OrderConfirmedEvent{
		OrderID:            result.Order.ID,
		UserID:             result.Order.UserID,
		Items:              result.Order.Items,
		PendingCartItemIDs: result.PendingCartItemIDs,
		Timestamp:          result.Order.CreatedAt,
	}
	if err := c.publisher.Publish(ctx, result.Order.ID, event); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish order confirmed event", "error", err, "order_id", result.Order.ID)
	}
}

func (c *Checkout) record(ctx context.Context, span trace.Span, outcome string, err error) {
	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("checkout.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
