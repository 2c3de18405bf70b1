package pipeline_test

import (
	"context"
	"slices"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/features"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/history"
)

// MockTransactionSource is a mock implementation of TransactionSource for testing.
type MockTransactionSource struct {
	LoadRatesFunc        func(ctx context.Context) ([]domain.FxRate, error)
	LoadTransactionsFunc func(ctx context.Context, start, end civil.Date) ([]domain.RawTransaction, error)
}

func (m *MockTransactionSource) LoadRates(ctx context.Context) ([]domain.FxRate, error) {
	if m.LoadRatesFunc != nil {
		return m.LoadRatesFunc(ctx)
	}
	return nil, nil
}

func (m *MockTransactionSource) LoadTransactions(ctx context.Context, start, end civil.Date) ([]domain.RawTransaction, error) {
	if m.LoadTransactionsFunc != nil {
		return m.LoadTransactionsFunc(ctx, start, end)
	}
	return nil, nil
}

// memoryHistory keeps the metrics table in memory.
type memoryHistory struct {
	rows []domain.DailyCustomerMetric
}

func (h *memoryHistory) Append(_ context.Context, metrics []domain.DailyCustomerMetric) (history.MergeResult, error) {
	h.rows = append(h.rows, metrics...)
	slices.SortFunc(h.rows, domain.CompareKeys)
	return history.MergeResult{Added: len(metrics), Total: len(h.rows)}, nil
}

func (h *memoryHistory) Load(_ context.Context) ([]domain.DailyCustomerMetric, error) {
	return slices.Clone(h.rows), nil
}

func (h *memoryHistory) CustomerHistory(_ context.Context, customerID string, before civil.Date) ([]domain.DailyCustomerMetric, error) {
	return features.PriorRows(h.rows, customerID, before), nil
}

// MockHistoryIndex records rebuilds.
type MockHistoryIndex struct {
	memoryHistory
	Rebuilds int
}

func (m *MockHistoryIndex) Rebuild(_ context.Context, metrics []domain.DailyCustomerMetric) error {
	m.Rebuilds++
	m.rows = slices.Clone(metrics)
	return nil
}

// MockExporter records exported batches.
type MockExporter struct {
	InsertMetricsFunc func(ctx context.Context, runID string, metrics []domain.DailyCustomerMetric) error
	RunIDs            []string
	Rows              int
}

func (m *MockExporter) InsertMetrics(ctx context.Context, runID string, metrics []domain.DailyCustomerMetric) error {
	m.RunIDs = append(m.RunIDs, runID)
	m.Rows += len(metrics)
	if m.InsertMetricsFunc != nil {
		return m.InsertMetricsFunc(ctx, runID, metrics)
	}
	return nil
}
