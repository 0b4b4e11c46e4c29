package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/stocktrace/internal/platform/db"
)

// Repository persists the movement ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
// Serialization failures and deadlocks surface as ErrConflict so the
// service can retry against fresh state.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && isTransient(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// ListByProduct returns committed movements for one product in reverse
// commit order.
func (r *Repository) ListByProduct(ctx context.Context, productID string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, kind, quantity, note, counterparty_id, balance_after, recorded_by, occurred_at
FROM stock_movements
WHERE product_id = $1
ORDER BY seq DESC
LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var note, counterparty, recordedBy *string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Quantity, &note, &counterparty, &recordedBy, &m.OccurredAt); err != nil {
			return nil, err
		}
		m.Note = deref(note)
		m.CounterpartyID = deref(counterparty)
		m.RecordedBy = deref(recordedBy)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// GetQuantity reads the committed quantity without locking.
func (r *Repository) GetQuantity(ctx context.Context, productID string) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	return qty, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetQuantityForUpdate(ctx context.Context, productID string) (int64, error) {
	var qty int64
	err := r.tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (id, product_id, kind, quantity, note, counterparty_id, balance_after, recorded_by, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.ProductID, string(m.Kind), m.Quantity, nullStr(m.Note), nullStr(m.CounterpartyID), m.BalanceAfter, nullStr(m.RecordedBy), m.OccurredAt)
	return err
}

func (r *txRepository) UpdateQuantity(ctx context.Context, productID string, quantity int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET quantity = $2, updated_at = NOW() WHERE id = $1`, productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// isTransient reports SQLSTATEs worth retrying: serialization_failure and
// deadlock_detected.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
