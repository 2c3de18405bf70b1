package pipeline

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/history"
)

// TransactionSource provides the raw inputs of a run.
// *ingest.Loader is the production implementation.
type TransactionSource interface {
	LoadRates(ctx context.Context) ([]domain.FxRate, error)
	LoadTransactions(ctx context.Context, start, end civil.Date) ([]domain.RawTransaction, error)
}

// HistoryStore is the persisted metrics table (*history.ParquetStore).
type HistoryStore interface {
	Append(ctx context.Context, metrics []domain.DailyCustomerMetric) (history.MergeResult, error)
	Load(ctx context.Context) ([]domain.DailyCustomerMetric, error)
}

// HistoryIndex is the per-customer lookup kept next to the store
// (*history.PebbleIndex).
type HistoryIndex interface {
	Rebuild(ctx context.Context, metrics []domain.DailyCustomerMetric) error
	history.Reader
}

// MetricsExporter receives each run's daily metrics
// (*warehouse.BigQueryMetricsRepository).
type MetricsExporter interface {
	InsertMetrics(ctx context.Context, runID string, metrics []domain.DailyCustomerMetric) error
}
