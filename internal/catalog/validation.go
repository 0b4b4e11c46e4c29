package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProduct flags a product payload that fails validation.
var ErrInvalidProduct = errors.New("catalog: invalid product")

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Unit) == "" {
		return fmt.Errorf("%w: unit is required", ErrInvalidProduct)
	}
	if p.MinStock < 0 {
		return fmt.Errorf("%w: min stock must not be negative", ErrInvalidProduct)
	}
	return nil
}
