package catalog

import (
	"context"
	"slices"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

type ProductRepository struct {
	store *store.Store
}

func NewProductRepository(s *store.Store) *ProductRepository {
	return &ProductRepository{store: s}
}

// List returns every product, or only those in category when it is set.
func (r *ProductRepository) List(ctx context.Context, category string) ([]domain.Product, error) {
	f := store.All()
	if category != "" {
		f = store.Where("category", category)
	}
	return store.CollectAs[domain.Product](r.store.Query(ctx, store.ContainerProducts, f))
}

// GetByID returns nil when no product has the id. The lookup spans all
// category partitions.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	products, err := store.CollectAs[domain.Product](r.store.Query(ctx, store.ContainerProducts, store.Where("id", id).Limit(1)))
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// Categories returns the sorted, de-duplicated category names.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	categories := []string{}
	for it, err := range r.store.Query(ctx, store.ContainerProducts, store.All()) {
		if err != nil {
			return nil, err
		}
		c := it.String("category")
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		categories = append(categories, c)
	}
	slices.Sort(categories)
	return categories, nil
}

// Exists reports whether at least one product is stored.
func (r *ProductRepository) Exists(ctx context.Context) (bool, error) {
	items, err := store.Collect(r.store.Query(ctx, store.ContainerProducts, store.All().Limit(1)))
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

func (r *ProductRepository) Save(ctx context.Context, p domain.Product) (domain.Product, error) {
	it, err := store.Encode(p)
	if err != nil {
		return domain.Product{}, err
	}
	saved, err := r.store.Upsert(ctx, store.ContainerProducts, it)
	if err != nil {
		return domain.Product{}, err
	}
	return store.Decode[domain.Product](saved)
}
