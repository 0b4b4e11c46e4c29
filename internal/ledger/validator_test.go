package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValidatorCounterpartyRouting(t *testing.T) {
	dir := newStubDirectory()
	productID := uuid.NewString()
	dir.minStock[productID] = 0
	supplierID := uuid.NewString()
	customerID := uuid.NewString()
	dir.suppliers[supplierID] = true
	dir.customers[customerID] = true

	v := NewValidator(dir, dir)
	ctx := context.Background()

	require.NoError(t, v.Validate(ctx, MovementInput{
		ProductID: productID, Kind: KindReceipt, Quantity: 1, CounterpartyID: supplierID}))
	require.NoError(t, v.Validate(ctx, MovementInput{
		ProductID: productID, Kind: KindIssue, Quantity: 1, CounterpartyID: customerID}))

	// Roles do not cross over.
	err := v.Validate(ctx, MovementInput{
		ProductID: productID, Kind: KindReceipt, Quantity: 1, CounterpartyID: customerID})
	require.ErrorIs(t, err, ErrCounterpartyNotFound)
	err = v.Validate(ctx, MovementInput{
		ProductID: productID, Kind: KindIssue, Quantity: 1, CounterpartyID: supplierID})
	require.ErrorIs(t, err, ErrCounterpartyNotFound)

	// Counterparty is optional.
	require.NoError(t, v.Validate(ctx, MovementInput{
		ProductID: productID, Kind: KindIssue, Quantity: 1}))
}

func TestValidatorNeverChecksSufficiency(t *testing.T) {
	dir := newStubDirectory()
	productID := uuid.NewString()
	dir.minStock[productID] = 100

	v := NewValidator(dir, dir)

	// Admissibility only; an issue far above any plausible stock level passes.
	require.NoError(t, v.Validate(context.Background(), MovementInput{
		ProductID: productID, Kind: KindIssue, Quantity: 1 << 40}))
}
