package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockWarmup refreshes the cached stock statistics snapshot.
	TaskStockWarmup = "stock:warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// StockWarmupPayload configures a stock statistics warmup run.
type StockWarmupPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewStockWarmupTask constructs an Asynq task for cache warmup.
func NewStockWarmupTask(payload StockWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockWarmup, data), nil
}

// IdempotencyCleanupPayload configures the retention window for key pruning.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"olderThanHours,omitempty"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key pruning.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
