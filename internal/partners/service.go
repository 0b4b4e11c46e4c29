package partners

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPartner flags a partner payload that fails validation.
var ErrInvalidPartner = errors.New("partners: invalid partner")

// Service exposes partner directories to handlers and to the ledger validator.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all partners of one role.
func (s *Service) List(ctx context.Context, role Role) ([]Partner, error) {
	return s.repo.List(ctx, role)
}

// Get fetches one partner.
func (s *Service) Get(ctx context.Context, id string) (Partner, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new supplier or customer.
func (s *Service) Create(ctx context.Context, partner Partner) (Partner, error) {
	if partner.Role != RoleSupplier && partner.Role != RoleCustomer {
		return Partner{}, fmt.Errorf("%w: role must be SUPPLIER or CUSTOMER", ErrInvalidPartner)
	}
	if strings.TrimSpace(partner.Name) == "" {
		return Partner{}, fmt.Errorf("%w: name is required", ErrInvalidPartner)
	}
	if partner.ID == "" {
		partner.ID = uuid.NewString()
	}
	return s.repo.Create(ctx, partner)
}

// SupplierExists reports whether a supplier with the given id is known.
// Part of the partner directory contract consumed by the ledger validator.
func (s *Service) SupplierExists(ctx context.Context, id string) (bool, error) {
	return s.repo.ExistsWithRole(ctx, id, RoleSupplier)
}

// CustomerExists reports whether a customer with the given id is known.
func (s *Service) CustomerExists(ctx context.Context, id string) (bool, error) {
	return s.repo.ExistsWithRole(ctx, id, RoleCustomer)
}
