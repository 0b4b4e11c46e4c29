// Package jobs wires background task processing over Asynq.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockCheck re-checks a product that dropped below its minimum stock.
	TaskLowStockCheck = "stock:low_stock_check"
)

// LowStockPayload identifies the product that crossed its threshold.
type LowStockPayload struct {
	ProductID   string    `json:"product_id"`
	NewQuantity int64     `json:"new_quantity"`
	MinStock    int64     `json:"min_stock"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewLowStockCheckTask constructs an Asynq task.
func NewLowStockCheckTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockCheck, data, asynq.Queue(QueueDefault)), nil
}
