package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
)

func SampleProducts() []domain.Product {
	return []domain.Product{
		{ID: "1", Name: "Laptop", Category: "Electronics", Price: 1299.99},
		{ID: "2", Name: "Headphones", Category: "Electronics", Price: 199.99},
		{ID: "3", Name: "Coffee Mug", Category: "Home", Price: 14.99},
		{ID: "4", Name: "Notebook", Category: "Office", Price: 7.49},
	}
}

// Seeder fills an empty catalog. Products are upserted by id, so two seeders
// racing past the emptiness probe write the same records and converge.
type Seeder struct {
	repo     *ProductRepository
	products []domain.Product
	logger   *slog.Logger
}

func NewSeeder(repo *ProductRepository, products []domain.Product, logger *slog.Logger) *Seeder {
	return &Seeder{
		repo:     repo,
		products: products,
		logger:   logger,
	}
}

// Seed returns the number of products written, zero when the catalog already
// had data.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	exists, err := s.repo.Exists(ctx)
	if err != nil {
		return 0, fmt.Errorf("probe catalog: %w", err)
	}
	if exists {
		s.logger.InfoContext(ctx, "catalog already seeded")
		return 0, nil
	}

	for _, p := range s.products {
		if _, err := s.repo.Save(ctx, p); err != nil {
			return 0, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	s.logger.InfoContext(ctx, "catalog seeded", "count", len(s.products))
	return len(s.products), nil
}
