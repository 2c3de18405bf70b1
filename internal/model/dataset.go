// Package model fits and evaluates the next-day spend regressor and stores
// its artifacts.
package model

import (
	"fmt"
	"slices"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// Sample is one training row: a feature vector and its net amount.
type Sample struct {
	Date       civil.Date
	CustomerID string
	X          []float64
	Y          float64
}

// DateRange is the first and last date of a sample set.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

func dateRange(samples []Sample) DateRange {
	r := DateRange{Start: samples[0].Date, End: samples[0].Date}
	for _, s := range samples[1:] {
		if s.Date.Before(r.Start) {
			r.Start = s.Date
		}
		if s.Date.After(r.End) {
			r.End = s.Date
		}
	}
	return r
}

// TimeSplit orders samples by date and puts the last testSize fraction in
// the test set. Samples on the same date keep their input order.
func TimeSplit(samples []Sample, testSize float64) (train, test []Sample, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("TimeSplit: %w: test size %v outside (0, 1)", domain.ErrConfig, testSize)
	}
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b Sample) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		default:
			return 0
		}
	})

	cut := int(float64(len(sorted)) * (1 - testSize))
	if cut == 0 || cut == len(sorted) {
		return nil, nil, fmt.Errorf("TimeSplit: %w: %d samples cannot fill both train and test", domain.ErrEmptyInput, len(sorted))
	}
	return sorted[:cut], sorted[cut:], nil
}

func matrix(samples []Sample) ([][]float64, []float64) {
	x := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.X
		y[i] = s.Y
	}
	return x, y
}
