package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agape-erp/agape-erp/internal/jobs"
	"github.com/agape-erp/agape-erp/internal/stock"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StockWarmupJob recomputes warehouse statistics and refreshes the shared cache
// so dashboard reads stay warm between requests.
type StockWarmupJob struct {
	Stock   *stock.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStockWarmupJob wires dependencies for the warmup handler.
func NewStockWarmupJob(stockSvc *stock.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockWarmupJob {
	return &StockWarmupJob{
		Stock:   stockSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes stock warmup tasks.
func (j *StockWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("stock warmup: handler not configured")
	}
	var payload StockWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStockWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Reason != "" {
		logger = logger.With(slog.String("reason", payload.Reason))
	}
	logger.Info("starting stock warmup")

	// Bound each run so a slow query cannot pile up scheduled executions.
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := j.now()
	stats, err := j.Stock.Refresh(runCtx)
	if err != nil {
		resultErr = err
		logger.Error("refresh stock statistics", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed stock warmup",
		slog.Int64("total_items", stats.TotalItems),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *StockWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStockWarmup))
}

func (j *StockWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StockWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
