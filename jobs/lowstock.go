package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/stocktrace/internal/catalog"
	"github.com/noah-isme/stocktrace/internal/ledger"
)

// LowStockEnqueuer forwards committed-movement events to the task queue.
// It implements ledger.IntegrationHandler.
type LowStockEnqueuer struct {
	client *asynq.Client
}

// NewLowStockEnqueuer builds the enqueuer.
func NewLowStockEnqueuer(client *asynq.Client) *LowStockEnqueuer {
	return &LowStockEnqueuer{client: client}
}

// HandleMovementCommitted enqueues a low-stock check. The ledger only emits
// events for products that fell below their threshold.
func (e *LowStockEnqueuer) HandleMovementCommitted(ctx context.Context, evt ledger.MovementCommittedEvent) error {
	task, err := NewLowStockCheckTask(LowStockPayload{
		ProductID:   evt.ProductID,
		NewQuantity: evt.NewQuantity,
		MinStock:    evt.MinStock,
		OccurredAt:  evt.OccurredAt,
	})
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	return err
}

// ProductGetter narrows the catalog surface the handler needs.
type ProductGetter interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// NewLowStockCheckHandler processes TaskLowStockCheck tasks. It re-reads the
// product so alerts reflect current state, not the enqueue-time snapshot.
func NewLowStockCheckHandler(logger *slog.Logger, products ProductGetter) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		product, err := products.Get(ctx, payload.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return asynq.SkipRetry
			}
			return err
		}
		if product.Quantity >= product.MinStock {
			logger.Info("low stock resolved before check",
				slog.String("product_id", product.ID),
				slog.Int64("quantity", product.Quantity))
			return nil
		}
		logger.Warn("product below minimum stock",
			slog.String("product_id", product.ID),
			slog.String("sku", product.SKU),
			slog.Int64("quantity", product.Quantity),
			slog.Int64("min_stock", product.MinStock))
		return nil
	}
}
