package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

func day(d int) civil.Date { return civil.Date{Year: 2024, Month: 10, Day: d} }

// linearSamples follows y = 3 + 2·x0 − x1 exactly.
func linearSamples(n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		x0 := float64(i % 7)
		x1 := float64((i * 3) % 5)
		out[i] = Sample{Date: day(1 + i%10), CustomerID: "C", X: []float64{x0, x1}, Y: 3 + 2*x0 - x1}
	}
	return out
}

func TestTimeSplit(t *testing.T) {
	samples := []Sample{
		{Date: day(3), CustomerID: "A"},
		{Date: day(1), CustomerID: "B"},
		{Date: day(2), CustomerID: "C"},
		{Date: day(1), CustomerID: "D"},
		{Date: day(5), CustomerID: "E"},
	}
	train, test, err := TimeSplit(samples, 0.2)
	require.NoError(t, err)
	require.Len(t, train, 4)
	require.Len(t, test, 1)

	ids := []string{train[0].CustomerID, train[1].CustomerID, train[2].CustomerID, train[3].CustomerID}
	assert.Equal(t, []string{"B", "D", "C", "A"}, ids)
	assert.Equal(t, "E", test[0].CustomerID)
	assert.Equal(t, DateRange{Start: day(1), End: day(3)}, dateRange(train))
}

func TestTimeSplitErrors(t *testing.T) {
	_, _, err := TimeSplit(linearSamples(10), 0)
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, _, err = TimeSplit(linearSamples(1), 0.2)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestFitRidgeRecoversLinearModel(t *testing.T) {
	x, y := matrix(linearSamples(50))
	m, err := FitRidge(x, y, 0)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, m.Intercept, 1e-8)
	assert.InDelta(t, 2.0, m.Coefficients[0], 1e-8)
	assert.InDelta(t, -1.0, m.Coefficients[1], 1e-8)

	pred, err := m.Predict([]float64{4, 2})
	require.NoError(t, err)
	assert.InDelta(t, 9.0, pred, 1e-8)
}

func TestFitRidgeShrinks(t *testing.T) {
	x, y := matrix(linearSamples(50))
	plain, err := FitRidge(x, y, 0)
	require.NoError(t, err)
	shrunk, err := FitRidge(x, y, 100)
	require.NoError(t, err)

	assert.Less(t, math.Abs(shrunk.Coefficients[0]), math.Abs(plain.Coefficients[0]))
}

func TestFitRidgeConstantColumn(t *testing.T) {
	x := [][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}}
	y := []float64{2, 4, 6, 8}
	m, err := FitRidge(x, y, 0.001)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, m.Coefficients[1], 1e-12)
	assert.InDelta(t, 2.0, m.Coefficients[0], 1e-3)
}

func TestFitRidgeErrors(t *testing.T) {
	_, err := FitRidge(nil, nil, 1)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = FitRidge([][]float64{{1, 2}, {3}}, []float64{1, 2}, 1)
	assert.ErrorIs(t, err, domain.ErrSchema)

	m := &LinearModel{Coefficients: []float64{1, 2}}
	_, err = m.Predict([]float64{1})
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestEvaluate(t *testing.T) {
	m := &LinearModel{Intercept: 1, Coefficients: []float64{1}}
	samples := []Sample{
		{X: []float64{0}, Y: 1},
		{X: []float64{1}, Y: 4},
		{X: []float64{2}, Y: 3},
	}
	got, err := Evaluate(m, samples)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, got.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(4.0/3), got.RMSE, 1e-12)
	assert.InDelta(t, 1-4.0/(14.0/3), got.R2, 1e-12)
	assert.Equal(t, 3, got.Samples)
}

func TestEvaluateConstantTarget(t *testing.T) {
	m := &LinearModel{Intercept: 5, Coefficients: []float64{0}}
	perfect, err := Evaluate(m, []Sample{{X: []float64{1}, Y: 5}, {X: []float64{2}, Y: 5}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, perfect.R2)

	off, err := Evaluate(m, []Sample{{X: []float64{1}, Y: 4}, {X: []float64{2}, Y: 4}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, off.R2)
}

func TestTrainAndArtifacts(t *testing.T) {
	samples := linearSamples(40)
	columns := []string{"x0", "x1"}
	now := time.Date(2024, 10, 6, 0, 0, 0, 0, time.UTC)

	m, rep, err := Train(samples, columns, Options{TestSize: 0.25, Lambda: 0, RunID: "run-1", Now: func() time.Time { return now }})
	require.NoError(t, err)
	assert.Equal(t, 30, rep.Train.Samples)
	assert.Equal(t, 10, rep.Test.Samples)
	assert.InDelta(t, 0.0, rep.Test.MAE, 1e-8)
	assert.Equal(t, "x0", rep.Importance[0].Feature)
	assert.True(t, rep.TrainDates.End.Before(rep.TestDates.Start) || rep.TrainDates.End == rep.TestDates.Start)

	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, Artifacts{Model: m, Columns: columns, Report: rep}.Save(dir))

	loaded, err := LoadArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, columns, loaded.Columns)
	assert.Equal(t, m.Coefficients, loaded.Model.Coefficients)
	assert.Equal(t, rep.TrainDates, loaded.Report.TrainDates)
	assert.Equal(t, "run-1", loaded.Report.RunID)
	assert.True(t, now.Equal(loaded.Report.TrainedAt))
}

func TestLoadArtifactsErrors(t *testing.T) {
	_, err := LoadArtifacts(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	require.NoError(t, Artifacts{Model: &LinearModel{Coefficients: []float64{1}}, Columns: []string{"a", "b"}}.Save(dir))
	_, err = LoadArtifacts(dir)
	assert.Error(t, err)
}

func TestTrainRejectsWidthMismatch(t *testing.T) {
	_, _, err := Train(linearSamples(10), []string{"only_one"}, Options{TestSize: 0.2})
	assert.ErrorIs(t, err, domain.ErrSchema)
}
