package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
)

type ProductFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Service struct {
	repo     *Repository
	products ProductFinder
}

func NewService(repo *Repository, products ProductFinder) *Service {
	return &Service{
		repo:     repo,
		products: products,
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return s.repo.List(ctx, userID)
}

// AddItem stores a new cart line. The product must exist now; later catalog
// changes are not tracked.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (domain.CartItem, error) {
	if productID == "" {
		return domain.CartItem{}, fmt.Errorf("%w: product_id is required", domain.ErrInvalidInput)
	}
	if quantity <= 0 {
		return domain.CartItem{}, fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidInput, quantity)
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("look up product %s: %w", productID, err)
	}
	if product == nil {
		return domain.CartItem{}, fmt.Errorf("%w: unknown product_id %q", domain.ErrInvalidInput, productID)
	}

	return s.repo.Save(ctx, domain.CartItem{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  quantity,
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
