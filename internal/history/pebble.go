package history

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/pebble"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// PebbleIndex keys each metric by "customer_id#YYYY-MM-DD" so one customer's
// rows form a contiguous, date-ordered key range.
type PebbleIndex struct {
	db *pebble.DB
}

func OpenPebbleIndex(dir string) (*PebbleIndex, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleIndex{db: db}, nil
}

func (p *PebbleIndex) Close() error { return p.db.Close() }

// Put upserts metrics in one batch.
func (p *PebbleIndex) Put(_ context.Context, metrics []domain.DailyCustomerMetric) error {
	b := p.db.NewBatch()
	defer b.Close()
	if err := setAll(b, metrics); err != nil {
		return fmt.Errorf("PebbleIndex.Put: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("PebbleIndex.Put: commit: %w", err)
	}
	return nil
}

// Rebuild replaces the whole index with metrics. The delete and the new rows
// commit together, so readers see either the old index or the new one.
func (p *PebbleIndex) Rebuild(_ context.Context, metrics []domain.DailyCustomerMetric) error {
	b := p.db.NewBatch()
	defer b.Close()
	// 0xff sorts after every printable key.
	if err := b.DeleteRange([]byte{}, []byte{0xff}, nil); err != nil {
		return fmt.Errorf("PebbleIndex.Rebuild: %w", err)
	}
	if err := setAll(b, metrics); err != nil {
		return fmt.Errorf("PebbleIndex.Rebuild: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("PebbleIndex.Rebuild: commit: %w", err)
	}
	return nil
}

func setAll(b *pebble.Batch, metrics []domain.DailyCustomerMetric) error {
	for _, m := range metrics {
		v, err := json.Marshal(toRow(m))
		if err != nil {
			return fmt.Errorf("encode %s: %w", m.Key(), err)
		}
		if err := b.Set(indexKey(m.CustomerID, m.Date), v, nil); err != nil {
			return err
		}
	}
	return nil
}

// CustomerHistory returns customerID's rows dated strictly before before.
func (p *PebbleIndex) CustomerHistory(_ context.Context, customerID string, before civil.Date) ([]domain.DailyCustomerMetric, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(customerID + "#"),
		UpperBound: indexKey(customerID, before),
	})
	if err != nil {
		return nil, fmt.Errorf("PebbleIndex.CustomerHistory: %w", err)
	}
	defer it.Close()

	var out []domain.DailyCustomerMetric
	for it.First(); it.Valid(); it.Next() {
		var r metricRow
		if err := json.Unmarshal(it.Value(), &r); err != nil {
			return nil, fmt.Errorf("PebbleIndex.CustomerHistory: decode %s: %w", it.Key(), err)
		}
		m := fromRow(r)
		if m.CustomerID != customerID {
			continue
		}
		out = append(out, m)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("PebbleIndex.CustomerHistory: %w", err)
	}
	return out, nil
}

// Count returns the number of indexed rows.
func (p *PebbleIndex) Count() (int, error) {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return 0, fmt.Errorf("PebbleIndex.Count: %w", err)
	}
	defer it.Close()
	n := 0
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, it.Error()
}
