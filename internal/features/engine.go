package features

import (
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// Diagnostics counts what the engine did on one call.
type Diagnostics struct {
	Customers      int
	Rows           int
	ClippedReturns int // rows whose positive returns_ratio was clipped to 0
}

// Batch is the TrainingBatch result in (customer_id, date) order.
type Batch struct {
	Records     []FeaturedRecord
	Diagnostics Diagnostics
}

// Engine computes causal features. It holds no per-call state and is safe
// for concurrent use.
type Engine struct {
	cfg      Config
	registry *Registry
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()
	return &Engine{cfg: cfg, registry: NewRegistry(cfg)}, nil
}

// Registry returns the column registry matching the engine's output.
func (e *Engine) Registry() *Registry { return e.registry }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return e.cfg.clone() }

type span struct{ start, end int }

// TrainingBatch computes one FeaturedRecord per input row. Customers are
// processed in parallel; the output is identical to a sequential pass.
func (e *Engine) TrainingBatch(ctx context.Context, metrics []domain.DailyCustomerMetric) (Batch, error) {
	if len(metrics) == 0 {
		return Batch{}, fmt.Errorf("TrainingBatch: %w", domain.ErrEmptyInput)
	}

	rows := slices.Clone(metrics)
	slices.SortStableFunc(rows, domain.CompareKeys)

	var parts []span
	for i := range rows {
		if !rows[i].Date.IsValid() {
			return Batch{}, fmt.Errorf("TrainingBatch: %w: invalid date for customer %q", domain.ErrSchema, rows[i].CustomerID)
		}
		if i > 0 && domain.CompareKeys(rows[i-1], rows[i]) == 0 {
			return Batch{}, fmt.Errorf("TrainingBatch: %w: %s", domain.ErrDuplicateKey, rows[i].Key())
		}
		if i == 0 || rows[i-1].CustomerID != rows[i].CustomerID {
			parts = append(parts, span{start: i, end: i})
		}
		parts[len(parts)-1].end = i + 1
	}

	out := make([]FeaturedRecord, len(rows))
	clipped := make([]int, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for p, s := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h := newCustomerHistory(e.cfg)
			for i := s.start; i < s.end; i++ {
				rec, c := h.featurize(rows[i])
				if c {
					clipped[p]++
				}
				out[i] = rec
				h.push(rows[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, fmt.Errorf("TrainingBatch: %w", err)
	}

	diag := Diagnostics{Customers: len(parts), Rows: len(out)}
	for _, c := range clipped {
		diag.ClippedReturns += c
	}
	return Batch{Records: out, Diagnostics: diag}, nil
}

// SingleRowAhead computes the features for a hypothetical row of
// customerID on target. Only history rows of that customer strictly before
// target are used; a customer with no such rows gets all history features
// set to 0. The placeholder row has zero orders, items and amounts.
func (e *Engine) SingleRowAhead(history []domain.DailyCustomerMetric, customerID string, target civil.Date) (FeaturedRecord, error) {
	if !target.IsValid() {
		return FeaturedRecord{}, fmt.Errorf("SingleRowAhead: %w: invalid target date", domain.ErrSchema)
	}
	if customerID == "" {
		return FeaturedRecord{}, fmt.Errorf("SingleRowAhead: %w: empty customer id", domain.ErrSchema)
	}

	prior := PriorRows(history, customerID, target)
	for i := 1; i < len(prior); i++ {
		if prior[i-1].Date == prior[i].Date {
			return FeaturedRecord{}, fmt.Errorf("SingleRowAhead: %w: %s", domain.ErrDuplicateKey, prior[i].Key())
		}
	}

	h := newCustomerHistory(e.cfg)
	for _, m := range prior {
		h.push(m)
	}
	rec, _ := h.featurize(domain.DailyCustomerMetric{CustomerID: customerID, Date: target})
	return rec, nil
}

// PriorRows returns customerID's rows dated strictly before target, in
// date order.
func PriorRows(history []domain.DailyCustomerMetric, customerID string, target civil.Date) []domain.DailyCustomerMetric {
	var prior []domain.DailyCustomerMetric
	for _, m := range history {
		if m.CustomerID == customerID && m.Date.Before(target) {
			prior = append(prior, m)
		}
	}
	slices.SortStableFunc(prior, domain.CompareKeys)
	return prior
}
