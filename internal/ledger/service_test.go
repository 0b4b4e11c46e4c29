package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stocktrace/internal/shared"
)

// memoryRepo emulates the Postgres repository including the exclusivity the
// row lock provides: WithTx serializes whole transactions and stages writes
// until commit.
type memoryRepo struct {
	mu            sync.Mutex
	quantities    map[string]int64
	movements     []Movement
	insertErr     error
	updateErr     error
	conflictsLeft int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quantities: make(map[string]int64)}
}

type memoryTx struct {
	repo     *memoryRepo
	staged   map[string]int64
	inserted []Movement
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return fmt.Errorf("%w: injected", ErrConflict)
	}
	tx := &memoryTx{repo: r, staged: make(map[string]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, qty := range tx.staged {
		r.quantities[id] = qty
	}
	r.movements = append(r.movements, tx.inserted...)
	return nil
}

func (r *memoryRepo) ListByProduct(ctx context.Context, productID string, limit int) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Movement
	for i := len(r.movements) - 1; i >= 0 && len(result) < limit; i-- {
		if r.movements[i].ProductID == productID {
			result = append(result, r.movements[i])
		}
	}
	return result, nil
}

func (r *memoryRepo) GetQuantity(ctx context.Context, productID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qty, ok := r.quantities[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return qty, nil
}

func (r *memoryRepo) snapshot() (map[string]int64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quantities := make(map[string]int64, len(r.quantities))
	for id, qty := range r.quantities {
		quantities[id] = qty
	}
	return quantities, len(r.movements)
}

func (tx *memoryTx) GetQuantityForUpdate(ctx context.Context, productID string) (int64, error) {
	if qty, ok := tx.staged[productID]; ok {
		return qty, nil
	}
	qty, ok := tx.repo.quantities[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return qty, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	if tx.repo.insertErr != nil {
		return tx.repo.insertErr
	}
	tx.inserted = append(tx.inserted, m)
	return nil
}

func (tx *memoryTx) UpdateQuantity(ctx context.Context, productID string, quantity int64) error {
	if tx.repo.updateErr != nil {
		return tx.repo.updateErr
	}
	tx.staged[productID] = quantity
	return nil
}

type stubDirectory struct {
	minStock  map[string]int64
	suppliers map[string]bool
	customers map[string]bool
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		minStock:  make(map[string]int64),
		suppliers: make(map[string]bool),
		customers: make(map[string]bool),
	}
}

func (d *stubDirectory) Exists(ctx context.Context, productID string) (bool, error) {
	_, ok := d.minStock[productID]
	return ok, nil
}

func (d *stubDirectory) MinStock(ctx context.Context, productID string) (int64, error) {
	return d.minStock[productID], nil
}

func (d *stubDirectory) SupplierExists(ctx context.Context, id string) (bool, error) {
	return d.suppliers[id], nil
}

func (d *stubDirectory) CustomerExists(ctx context.Context, id string) (bool, error) {
	return d.customers[id], nil
}

type captureIntegration struct {
	mu     sync.Mutex
	events []MovementCommittedEvent
}

func (c *captureIntegration) HandleMovementCommitted(ctx context.Context, evt MovementCommittedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

type captureAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (c *captureAudit) Record(ctx context.Context, log shared.AuditLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, log)
	return nil
}

type testEnv struct {
	repo        *memoryRepo
	dir         *stubDirectory
	integration *captureIntegration
	audit       *captureAudit
	service     *Service
}

func newTestEnv(t *testing.T, cfg ServiceConfig) *testEnv {
	t.Helper()
	repo := newMemoryRepo()
	dir := newStubDirectory()
	integration := &captureIntegration{}
	audit := &captureAudit{}
	logger := slog.Default()
	svc := NewService(logger, repo, NewValidator(dir, dir), dir, audit, nil, integration, nil, cfg)
	return &testEnv{repo: repo, dir: dir, integration: integration, audit: audit, service: svc}
}

func (e *testEnv) addProduct(quantity, minStock int64) string {
	id := uuid.NewString()
	e.repo.quantities[id] = quantity
	e.dir.minStock[id] = minStock
	return id
}

func TestIssueDecreasesQuantity(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(10, 0)
	ctx := context.Background()

	result, err := env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, int64(6), result.NewQuantity)
	require.NotEmpty(t, result.MovementID)

	history, err := env.service.GetHistory(ctx, productID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, int64(-4), history[0].SignedChange)
	require.Equal(t, int64(6), history[0].BalanceAfter)
}

func TestIssueFromEmptyProductRejected(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(0, 0)
	ctx := context.Background()

	before, beforeCount := env.repo.snapshot()

	_, err := env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 1})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(0), insufficient.Available)
	require.Equal(t, int64(1), insufficient.Requested)

	after, afterCount := env.repo.snapshot()
	require.Equal(t, before, after)
	require.Equal(t, beforeCount, afterCount)
}

func TestReceiptThenIssuesDrainToZero(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(0, 0)
	ctx := context.Background()

	_, err := env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindReceipt, Quantity: 10})
	require.NoError(t, err)
	_, err = env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 3})
	require.NoError(t, err)
	result, err := env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 7})
	require.NoError(t, err)
	require.Equal(t, int64(0), result.NewQuantity)

	history, err := env.service.GetHistory(ctx, productID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, int64(0), history[0].BalanceAfter)
	require.Equal(t, int64(7), history[1].BalanceAfter)
	require.Equal(t, int64(10), history[2].BalanceAfter)

	// Repeated reads with no intervening writes are identical.
	again, err := env.service.GetHistory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, history, again)
}

func TestConcurrentIssuesNeverOverdraw(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	const initial, issueQty, workers = int64(10), int64(3), 10
	productID := env.addProduct(initial, 0)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.RecordMovement(context.Background(),
				MovementInput{ProductID: productID, Kind: KindIssue, Quantity: issueQty})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, insufficient := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		insufficient++
	}
	wantSuccesses := int(initial / issueQty)
	require.Equal(t, wantSuccesses, succeeded)
	require.Equal(t, workers-wantSuccesses, insufficient)

	quantities, _ := env.repo.snapshot()
	require.Equal(t, initial-int64(wantSuccesses)*issueQty, quantities[productID])

	// Invariant: quantity equals the signed sum of committed movements.
	history, err := env.service.GetHistory(context.Background(), productID)
	require.NoError(t, err)
	var sum int64
	for _, entry := range history {
		sum += entry.SignedChange
	}
	require.Equal(t, quantities[productID], initial+sum)
}

func TestConcurrentIssueExactlyOneSucceeds(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(5, 0)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.RecordMovement(context.Background(),
				MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 3})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded)
	quantities, _ := env.repo.snapshot()
	require.Equal(t, int64(2), quantities[productID])
}

func TestValidationRejections(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(10, 0)
	supplierID := uuid.NewString()
	env.dir.suppliers[supplierID] = true
	ctx := context.Background()

	_, err := env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: -5})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.service.RecordMovement(ctx, MovementInput{ProductID: uuid.NewString(), Kind: KindReceipt, Quantity: 1})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = env.service.RecordMovement(ctx, MovementInput{
		ProductID: productID, Kind: KindReceipt, Quantity: 1, CounterpartyID: uuid.NewString()})
	require.ErrorIs(t, err, ErrCounterpartyNotFound)

	// A supplier id is not a valid issue counterparty.
	_, err = env.service.RecordMovement(ctx, MovementInput{
		ProductID: productID, Kind: KindIssue, Quantity: 1, CounterpartyID: supplierID})
	require.ErrorIs(t, err, ErrCounterpartyNotFound)

	_, err = env.service.RecordMovement(ctx, MovementInput{
		ProductID: productID, Kind: KindReceipt, Quantity: 1, CounterpartyID: supplierID})
	require.NoError(t, err)

	_, movementCount := env.repo.snapshot()
	require.Equal(t, 1, movementCount)
}

func TestConflictRetriesThenSucceeds(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{MaxAttempts: 3})
	productID := env.addProduct(10, 0)
	env.repo.conflictsLeft = 2

	result, err := env.service.RecordMovement(context.Background(),
		MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, int64(9), result.NewQuantity)
}

func TestConflictSurfacesAfterRetryBudget(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{MaxAttempts: 3})
	productID := env.addProduct(10, 0)
	env.repo.conflictsLeft = 3

	_, err := env.service.RecordMovement(context.Background(),
		MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 1})
	require.ErrorIs(t, err, ErrConflict)

	quantities, movementCount := env.repo.snapshot()
	require.Equal(t, int64(10), quantities[productID])
	require.Equal(t, 0, movementCount)
}

func TestPersistenceFailureLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(10, 0)
	env.repo.insertErr = fmt.Errorf("disk on fire")

	_, err := env.service.RecordMovement(context.Background(),
		MovementInput{ProductID: productID, Kind: KindReceipt, Quantity: 5})
	require.Error(t, err)

	quantities, movementCount := env.repo.snapshot()
	require.Equal(t, int64(10), quantities[productID])
	require.Equal(t, 0, movementCount)
}

func TestLowStockEventEmittedBelowThreshold(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(10, 5)
	ctx := context.Background()

	_, err := env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 3})
	require.NoError(t, err)
	require.Empty(t, env.integration.events)

	_, err = env.service.RecordMovement(ctx, MovementInput{ProductID: productID, Kind: KindIssue, Quantity: 4})
	require.NoError(t, err)
	require.Len(t, env.integration.events, 1)
	evt := env.integration.events[0]
	require.Equal(t, productID, evt.ProductID)
	require.Equal(t, int64(3), evt.NewQuantity)
	require.Equal(t, int64(5), evt.MinStock)
}

func TestAuditRecordedAfterCommit(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	productID := env.addProduct(0, 0)

	result, err := env.service.RecordMovement(context.Background(),
		MovementInput{ProductID: productID, Kind: KindReceipt, Quantity: 2, ActorID: "clerk-7"})
	require.NoError(t, err)
	require.Len(t, env.audit.logs, 1)
	require.Equal(t, "ledger:RECEIPT", env.audit.logs[0].Action)
	require.Equal(t, result.MovementID, env.audit.logs[0].EntityID)
	require.Equal(t, "clerk-7", env.audit.logs[0].Actor)
}

func TestHistoryForUnknownProductIsEmpty(t *testing.T) {
	env := newTestEnv(t, ServiceConfig{})
	ctx := context.Background()

	history, err := env.service.GetHistory(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Empty(t, history)

	history, err = env.service.GetHistory(ctx, "not-a-uuid")
	require.NoError(t, err)
	require.Empty(t, history)
}
