package ledger

import (
	"context"

	"github.com/google/uuid"
)

// ProductDirectory resolves products owned by the catalog module.
type ProductDirectory interface {
	Exists(ctx context.Context, productID string) (bool, error)
	MinStock(ctx context.Context, productID string) (int64, error)
}

// PartnerDirectory resolves suppliers and customers owned by the partner module.
type PartnerDirectory interface {
	SupplierExists(ctx context.Context, id string) (bool, error)
	CustomerExists(ctx context.Context, id string) (bool, error)
}

// Validator checks that a proposed movement is well-formed and admissible.
// It is a pure check with no side effects. Sufficiency of stock is not
// verified here: that read belongs inside the guard's atomic section.
type Validator struct {
	products ProductDirectory
	partners PartnerDirectory
}

// NewValidator constructs a Validator.
func NewValidator(products ProductDirectory, partners PartnerDirectory) *Validator {
	return &Validator{products: products, partners: partners}
}

// Validate rejects malformed or dangling movement requests.
func (v *Validator) Validate(ctx context.Context, input MovementInput) error {
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := ParseKind(string(input.Kind)); err != nil {
		return err
	}
	if _, err := uuid.Parse(input.ProductID); err != nil {
		return ErrProductNotFound
	}
	ok, err := v.products.Exists(ctx, input.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProductNotFound
	}
	if input.CounterpartyID == "" {
		return nil
	}
	if _, err := uuid.Parse(input.CounterpartyID); err != nil {
		return ErrCounterpartyNotFound
	}
	// Receipts reference suppliers, issues reference customers.
	switch input.Kind {
	case KindReceipt:
		ok, err = v.partners.SupplierExists(ctx, input.CounterpartyID)
	case KindIssue:
		ok, err = v.partners.CustomerExists(ctx, input.CounterpartyID)
	}
	if err != nil {
		return err
	}
	if !ok {
		return ErrCounterpartyNotFound
	}
	return nil
}
