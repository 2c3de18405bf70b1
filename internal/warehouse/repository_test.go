package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

type mockPutter struct {
	batches [][]*DailyMetricRow
	failOn  int
}

func (m *mockPutter) Put(_ context.Context, src interface{}) error {
	rows := src.([]*DailyMetricRow)
	m.batches = append(m.batches, rows)
	if m.failOn > 0 && len(m.batches) == m.failOn {
		return errors.New("quota exceeded")
	}
	return nil
}

func metrics(n int) []domain.DailyCustomerMetric {
	out := make([]domain.DailyCustomerMetric, n)
	for i := range out {
		out[i] = domain.DailyCustomerMetric{
			Date:       civil.Date{Year: 2024, Month: 10, Day: 1}.AddDays(i % 5),
			CustomerID: "C",
			Orders:     int64(i),
			NetAmount:  float64(i),
		}
	}
	return out
}

func TestInsertMetricsBatches(t *testing.T) {
	loaded := time.Date(2024, 10, 6, 12, 0, 0, 0, time.UTC)
	p := &mockPutter{}

	if err := insertMetrics(context.Background(), p, "run-1", loaded, metrics(1201)); err != nil {
		t.Fatalf("insertMetrics() error = %v", err)
	}

	if len(p.batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(p.batches))
	}
	sizes := []int{len(p.batches[0]), len(p.batches[1]), len(p.batches[2])}
	if sizes[0] != 500 || sizes[1] != 500 || sizes[2] != 201 {
		t.Errorf("batch sizes = %v, want [500 500 201]", sizes)
	}

	last := p.batches[2][200]
	if last.RunID != "run-1" || !last.LoadedTS.Equal(loaded) || last.Orders != 1200 {
		t.Errorf("unexpected last row: %+v", last)
	}
}

func TestInsertMetricsEmpty(t *testing.T) {
	p := &mockPutter{}
	if err := insertMetrics(context.Background(), p, "run-1", time.Now(), nil); err != nil {
		t.Fatalf("insertMetrics() error = %v", err)
	}
	if len(p.batches) != 0 {
		t.Errorf("expected no Put calls, got %d", len(p.batches))
	}
}

func TestInsertMetricsError(t *testing.T) {
	p := &mockPutter{failOn: 2}
	err := insertMetrics(context.Background(), p, "run-1", time.Now(), metrics(600))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if want := "inserting rows 500-600"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not mention %q", err, want)
	}
}

func TestRowRoundTrip(t *testing.T) {
	m := domain.DailyCustomerMetric{
		Date: civil.Date{Year: 2024, Month: 10, Day: 3}, CustomerID: "C9",
		Orders: 2, Items: 6, GrossAmount: 16, ReturnsAmount: -5, NetAmount: 11,
	}
	if got := toRow(m, "r", time.Time{}).metric(); got != m {
		t.Errorf("metric() = %+v, want %+v", got, m)
	}
}
