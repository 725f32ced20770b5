package orders

import (
	"context"
	"slices"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

type OrderRepository struct {
	store *store.Store
}

func NewOrderRepository(s *store.Store) *OrderRepository {
	return &OrderRepository{store: s}
}

func (r *OrderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	it, err := store.Encode(order)
	if err != nil {
		return domain.Order{}, err
	}
	saved, err := r.store.Upsert(ctx, store.ContainerOrders, it)
	if err != nil {
		return domain.Order{}, err
	}
	return store.Decode[domain.Order](saved)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := store.CollectAs[domain.Order](r.store.Query(ctx, store.ContainerOrders, store.Where("user_id", userID)))
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(orders, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return orders, nil
}
