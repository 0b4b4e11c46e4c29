package ledger

import (
	"context"
	"time"
)

// MovementCommittedEvent describes a movement that reached durable state.
type MovementCommittedEvent struct {
	MovementID  string
	ProductID   string
	Kind        Kind
	Quantity    int64
	NewQuantity int64
	MinStock    int64
	OccurredAt  time.Time
}

// IntegrationHandler receives committed movement events, e.g. to enqueue
// low-stock checks. Handlers run after commit: failures are logged, never
// propagated to the caller.
type IntegrationHandler interface {
	HandleMovementCommitted(ctx context.Context, evt MovementCommittedEvent) error
}
