// Package ledger implements the stock movement ledger and the
// quantity-consistency engine guarding product on-hand quantities.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Kind enumerates the two supported movement kinds. There is deliberately
// no unset or sentinel value.
type Kind string

const (
	// KindReceipt is an inbound movement increasing on-hand quantity.
	KindReceipt Kind = "RECEIPT"
	// KindIssue is an outbound movement decreasing on-hand quantity.
	KindIssue Kind = "ISSUE"
)

// ParseKind converts wire input into a Kind, rejecting anything that is not
// one of the two closed values.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindReceipt:
		return KindReceipt, nil
	case KindIssue:
		return KindIssue, nil
	default:
		return "", fmt.Errorf("ledger: unknown movement kind %q", s)
	}
}

// Sign returns +1 for receipts and -1 for issues.
func (k Kind) Sign() int64 {
	if k == KindIssue {
		return -1
	}
	return 1
}

// Movement is one committed ledger entry. Movements are append-only:
// once written they are never updated or deleted.
type Movement struct {
	ID             string
	ProductID      string
	Kind           Kind
	Quantity       int64
	Note           string
	CounterpartyID string
	BalanceAfter   int64
	RecordedBy     string
	OccurredAt     time.Time
}

// SignedChange is the movement's contribution to the product quantity.
func (m Movement) SignedChange() int64 {
	return m.Kind.Sign() * m.Quantity
}

// MovementInput carries a proposed movement into the engine.
type MovementInput struct {
	ProductID      string
	Kind           Kind
	Quantity       int64
	Note           string
	CounterpartyID string
	ActorID        string
}

// MovementResult reports the outcome of a committed movement.
type MovementResult struct {
	MovementID  string
	NewQuantity int64
}

// HistoryEntry is one row of a product's movement timeline.
type HistoryEntry struct {
	MovementID   string    `json:"movement_id"`
	Kind         Kind      `json:"kind"`
	Quantity     int64     `json:"quantity"`
	SignedChange int64     `json:"signed_change"`
	BalanceAfter int64     `json:"balance_after"`
	Note         string    `json:"note,omitempty"`
	RecordedBy   string    `json:"recorded_by,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be positive")
	// ErrProductNotFound indicates the referenced product does not exist.
	ErrProductNotFound = errors.New("ledger: product not found")
	// ErrCounterpartyNotFound indicates the referenced supplier or customer does not exist.
	ErrCounterpartyNotFound = errors.New("ledger: counterparty not found")
	// ErrConflict surfaces a concurrent write collision after the retry budget is spent.
	ErrConflict = errors.New("ledger: concurrent update conflict")
)

// InsufficientStockError rejects an issue that would drive the quantity
// negative. Available carries the quantity observed inside the atomic
// section so callers can correct and resubmit.
type InsufficientStockError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}
