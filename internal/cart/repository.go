package cart

import (
	"context"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

type Repository struct {
	store *store.Store
}

func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s}
}

// List reads a single user partition.
func (r *Repository) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return store.CollectAs[domain.CartItem](r.store.Query(ctx, store.ContainerCart, store.Where("user_id", userID)))
}

func (r *Repository) Save(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	it, err := store.Encode(item)
	if err != nil {
		return domain.CartItem{}, err
	}
	saved, err := r.store.Upsert(ctx, store.ContainerCart, it)
	if err != nil {
		return domain.CartItem{}, err
	}
	return store.Decode[domain.CartItem](saved)
}

// Delete returns store.ErrNotFound when the user has no such item.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	return r.store.Delete(ctx, store.ContainerCart, id, userID)
}
