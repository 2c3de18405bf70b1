package model

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// FeatureWeight is a coefficient scaled by its column's spread in the
// training set, so weights of different columns are comparable.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Report is written to metrics.json next to the model.
type Report struct {
	RunID      string          `json:"run_id"`
	TrainedAt  time.Time       `json:"trained_at"`
	Features   int             `json:"n_features"`
	Train      Metrics         `json:"train"`
	Test       Metrics         `json:"test"`
	TrainDates DateRange       `json:"train_dates"`
	TestDates  DateRange       `json:"test_dates"`
	Importance []FeatureWeight `json:"feature_importance"`
}

// Options configure Train.
type Options struct {
	TestSize float64
	Lambda   float64
	RunID    string
	Now      func() time.Time
}

// Train splits samples by time, fits a ridge model on the earlier part and
// scores it on both parts.
func Train(samples []Sample, columns []string, opts Options) (*LinearModel, Report, error) {
	for i, s := range samples {
		if len(s.X) != len(columns) {
			return nil, Report{}, fmt.Errorf("Train: %w: sample %d has %d features, want %d", domain.ErrSchema, i, len(s.X), len(columns))
		}
	}
	train, test, err := TimeSplit(samples, opts.TestSize)
	if err != nil {
		return nil, Report{}, err
	}

	x, y := matrix(train)
	m, err := FitRidge(x, y, opts.Lambda)
	if err != nil {
		return nil, Report{}, fmt.Errorf("Train: %w", err)
	}

	trainScore, err := Evaluate(m, train)
	if err != nil {
		return nil, Report{}, fmt.Errorf("Train: %w", err)
	}
	testScore, err := Evaluate(m, test)
	if err != nil {
		return nil, Report{}, fmt.Errorf("Train: %w", err)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	rep := Report{
		RunID:      opts.RunID,
		TrainedAt:  now().UTC(),
		Features:   len(columns),
		Train:      trainScore,
		Test:       testScore,
		TrainDates: dateRange(train),
		TestDates:  dateRange(test),
		Importance: importance(m, x, columns),
	}
	return m, rep, nil
}

func importance(m *LinearModel, x [][]float64, columns []string) []FeatureWeight {
	col := make([]float64, len(x))
	out := make([]FeatureWeight, len(columns))
	for j, name := range columns {
		for i := range x {
			col[i] = x[i][j]
		}
		sd := stat.StdDev(col, nil)
		if math.IsNaN(sd) {
			sd = 0
		}
		out[j] = FeatureWeight{Feature: name, Weight: math.Abs(m.Coefficients[j]) * sd}
	}
	slices.SortStableFunc(out, func(a, b FeatureWeight) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	return out
}
