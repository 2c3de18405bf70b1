package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/parquet-go/parquet-go"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/features"
)

// MergeResult reports what Append did.
type MergeResult struct {
	Added     int
	Unchanged int // identical to a stored row
	Total     int
}

// ParquetStore is the append-only metrics table. Rows are unique by
// (customer_id, date) and stored in that order.
type ParquetStore struct {
	path string
}

func NewParquetStore(path string) *ParquetStore {
	return &ParquetStore{path: path}
}

func (s *ParquetStore) Path() string { return s.path }

// Load reads the whole table. A missing file is an empty table.
func (s *ParquetStore) Load(_ context.Context) ([]domain.DailyCustomerMetric, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	rows, err := parquet.ReadFile[metricRow](s.path)
	if err != nil {
		return nil, fmt.Errorf("ParquetStore.Load: %s: %w", s.path, err)
	}
	out := make([]domain.DailyCustomerMetric, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// Append merges metrics into the table. A row whose key is already stored
// must be identical to the stored row; any conflict fails the whole merge
// and leaves the file untouched.
func (s *ParquetStore) Append(ctx context.Context, metrics []domain.DailyCustomerMetric) (MergeResult, error) {
	existing, err := s.Load(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	stored := make(map[domain.MetricKey]domain.DailyCustomerMetric, len(existing))
	for _, m := range existing {
		stored[m.Key()] = m
	}

	var res MergeResult
	incoming := make(map[domain.MetricKey]bool, len(metrics))
	merged := slices.Clone(existing)
	for _, m := range metrics {
		k := m.Key()
		if incoming[k] {
			return MergeResult{}, fmt.Errorf("ParquetStore.Append: %w: %s repeated in input", domain.ErrDuplicateKey, k)
		}
		incoming[k] = true

		if old, ok := stored[k]; ok {
			if old != m {
				return MergeResult{}, fmt.Errorf("ParquetStore.Append: %w: %s differs from stored row", domain.ErrDuplicateKey, k)
			}
			res.Unchanged++
			continue
		}
		merged = append(merged, m)
		res.Added++
	}
	slices.SortFunc(merged, domain.CompareKeys)
	res.Total = len(merged)

	if res.Added == 0 && len(existing) > 0 {
		return res, nil
	}
	if err := s.write(merged); err != nil {
		return MergeResult{}, err
	}
	return res, nil
}

func (s *ParquetStore) write(metrics []domain.DailyCustomerMetric) error {
	rows := make([]metricRow, len(metrics))
	for i, m := range metrics {
		rows[i] = toRow(m)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ParquetStore.write: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("ParquetStore.write: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := parquet.Write(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("ParquetStore.write: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ParquetStore.write: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("ParquetStore.write: rename: %w", err)
	}
	return nil
}

// CustomerHistory scans the whole file; use PebbleIndex for repeated lookups.
func (s *ParquetStore) CustomerHistory(ctx context.Context, customerID string, before civil.Date) ([]domain.DailyCustomerMetric, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return features.PriorRows(all, customerID, before), nil
}
