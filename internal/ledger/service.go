package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/stocktrace/internal/shared"
)

// RepositoryPort abstracts ledger persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByProduct(ctx context.Context, productID string, limit int) ([]Movement, error)
	GetQuantity(ctx context.Context, productID string) (int64, error)
}

// TxRepository exposes the operations available inside the guard's
// atomic section. Appending a movement outside WithTx is not possible.
type TxRepository interface {
	GetQuantityForUpdate(ctx context.Context, productID string) (int64, error)
	InsertMovement(ctx context.Context, m Movement) error
	UpdateQuantity(ctx context.Context, productID string, quantity int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SnapshotCache caches last committed quantities for cheap reads.
type SnapshotCache interface {
	Store(ctx context.Context, productID string, quantity int64) error
	Load(ctx context.Context, productID string) (int64, bool, error)
}

// MetricsRecorder counts ledger outcomes.
type MetricsRecorder interface {
	MovementCommitted(kind string)
	MovementRejected(reason string)
	ConflictRetried()
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MaxAttempts bounds transparent retries on transient conflicts.
	MaxAttempts int
	// HistoryLimit caps entries returned by GetHistory. Zero means default.
	HistoryLimit int
}

const (
	defaultMaxAttempts  = 3
	defaultHistoryLimit = 200
)

// Service is the quantity guard: it applies one validated movement to
// exactly one product so that the ledger append and the quantity update
// succeed or fail together.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	validator   *Validator
	products    ProductDirectory
	audit       AuditPort
	snapshots   SnapshotCache
	integration IntegrationHandler
	metrics     MetricsRecorder
	cfg         ServiceConfig
	now         func() time.Time
}

// NewService builds Service. audit, snapshots, integration and metrics may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, validator *Validator, products ProductDirectory,
	audit AuditPort, snapshots SnapshotCache, integration IntegrationHandler, metrics MetricsRecorder,
	cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Service{
		logger:      logger,
		repo:        repo,
		validator:   validator,
		products:    products,
		audit:       audit,
		snapshots:   snapshots,
		integration: integration,
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// RecordMovement validates and commits one movement. The ledger row and the
// quantity update land in the same transaction; a failed call leaves both
// untouched. Transient conflicts are retried up to cfg.MaxAttempts, each
// attempt re-reading the latest quantity under the product row lock.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (MovementResult, error) {
	if err := s.validator.Validate(ctx, input); err != nil {
		s.reject(err)
		return MovementResult{}, err
	}

	var committed Movement
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		committed, err = s.commitOnce(ctx, input)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflict) {
			s.reject(err)
			return MovementResult{}, err
		}
		if s.metrics != nil {
			s.metrics.ConflictRetried()
		}
		s.logger.Warn("movement conflict, retrying",
			slog.String("product_id", input.ProductID),
			slog.Int("attempt", attempt))
	}
	if err != nil {
		s.reject(err)
		return MovementResult{}, fmt.Errorf("%w (retries exhausted)", ErrConflict)
	}

	s.afterCommit(ctx, committed)
	return MovementResult{MovementID: committed.ID, NewQuantity: committed.BalanceAfter}, nil
}

func (s *Service) commitOnce(ctx context.Context, input MovementInput) (Movement, error) {
	var committed Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetQuantityForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		newQuantity := current + input.Kind.Sign()*input.Quantity
		if newQuantity < 0 {
			return &InsufficientStockError{
				ProductID: input.ProductID,
				Available: current,
				Requested: input.Quantity,
			}
		}
		movement := Movement{
			ID:             uuid.NewString(),
			ProductID:      input.ProductID,
			Kind:           input.Kind,
			Quantity:       input.Quantity,
			Note:           input.Note,
			CounterpartyID: input.CounterpartyID,
			BalanceAfter:   newQuantity,
			RecordedBy:     input.ActorID,
			OccurredAt:     s.now().UTC(),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		if err := tx.UpdateQuantity(ctx, input.ProductID, newQuantity); err != nil {
			return err
		}
		committed = movement
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	return committed, nil
}

// afterCommit performs best-effort side work. The movement is durable at
// this point, so failures here are logged and swallowed.
func (s *Service) afterCommit(ctx context.Context, m Movement) {
	if s.metrics != nil {
		s.metrics.MovementCommitted(string(m.Kind))
	}
	if s.snapshots != nil {
		if err := s.snapshots.Store(ctx, m.ProductID, m.BalanceAfter); err != nil {
			s.logger.Warn("store quantity snapshot", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    m.RecordedBy,
			Action:   fmt.Sprintf("ledger:%s", m.Kind),
			Entity:   "stock_movement",
			EntityID: m.ID,
			Meta: map[string]any{
				"product_id":    m.ProductID,
				"quantity":      m.Quantity,
				"balance_after": m.BalanceAfter,
				"note":          m.Note,
			},
		})
	}
	if s.integration != nil {
		minStock, err := s.products.MinStock(ctx, m.ProductID)
		if err != nil {
			s.logger.Warn("resolve min stock", slog.Any("error", err))
			return
		}
		if m.BalanceAfter >= minStock {
			return
		}
		evt := MovementCommittedEvent{
			MovementID:  m.ID,
			ProductID:   m.ProductID,
			Kind:        m.Kind,
			Quantity:    m.Quantity,
			NewQuantity: m.BalanceAfter,
			MinStock:    minStock,
			OccurredAt:  m.OccurredAt,
		}
		if err := s.integration.HandleMovementCommitted(ctx, evt); err != nil {
			s.logger.Warn("movement integration", slog.Any("error", err))
		}
	}
}

func (s *Service) reject(err error) {
	if s.metrics == nil {
		return
	}
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		s.metrics.MovementRejected("invalid_quantity")
	case errors.Is(err, ErrProductNotFound):
		s.metrics.MovementRejected("product_not_found")
	case errors.Is(err, ErrCounterpartyNotFound):
		s.metrics.MovementRejected("counterparty_not_found")
	case errors.As(err, &insufficient):
		s.metrics.MovementRejected("insufficient_stock")
	case errors.Is(err, ErrConflict):
		s.metrics.MovementRejected("conflict")
	default:
		s.metrics.MovementRejected("error")
	}
}

// GetHistory replays committed movements for a product, most recent first.
// Unknown or empty products yield an empty slice so callers can render
// "no history" uniformly.
func (s *Service) GetHistory(ctx context.Context, productID string) ([]HistoryEntry, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return []HistoryEntry{}, nil
	}
	movements, err := s.repo.ListByProduct(ctx, productID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list movements: %w", err)
	}
	entries := make([]HistoryEntry, 0, len(movements))
	for _, m := range movements {
		entries = append(entries, HistoryEntry{
			MovementID:   m.ID,
			Kind:         m.Kind,
			Quantity:     m.Quantity,
			SignedChange: m.SignedChange(),
			BalanceAfter: m.BalanceAfter,
			Note:         m.Note,
			RecordedBy:   m.RecordedBy,
			OccurredAt:   m.OccurredAt,
		})
	}
	return entries, nil
}

// GetQuantity returns the current committed quantity, serving from the
// snapshot cache when possible.
func (s *Service) GetQuantity(ctx context.Context, productID string) (int64, error) {
	if s.snapshots != nil {
		if qty, ok, err := s.snapshots.Load(ctx, productID); err == nil && ok {
			return qty, nil
		} else if err != nil {
			s.logger.Warn("load quantity snapshot", slog.Any("error", err))
		}
	}
	qty, err := s.repo.GetQuantity(ctx, productID)
	if err != nil {
		return 0, err
	}
	if s.snapshots != nil {
		if err := s.snapshots.Store(ctx, productID, qty); err != nil {
			s.logger.Warn("store quantity snapshot", slog.Any("error", err))
		}
	}
	return qty, nil
}
