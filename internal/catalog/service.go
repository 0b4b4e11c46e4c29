package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service exposes product master data to handlers and to the ledger.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of products plus the total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	return s.repo.List(ctx, filters)
}

// Get fetches one product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new product. New products start at zero quantity;
// stock arrives only through receipt movements.
func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.Quantity = 0
	product.IsActive = true
	return s.repo.Create(ctx, product)
}

// Update changes descriptive fields. Quantity is not updatable here.
func (s *Service) Update(ctx context.Context, id string, product Product) error {
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

// Delete deactivates a product, preserving its movement history.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Exists reports whether the product is known. Part of the product
// directory contract consumed by the ledger validator.
func (s *Service) Exists(ctx context.Context, productID string) (bool, error) {
	return s.repo.Exists(ctx, productID)
}

// MinStock returns the informational minimum-stock threshold.
func (s *Service) MinStock(ctx context.Context, productID string) (int64, error) {
	return s.repo.MinStock(ctx, productID)
}
