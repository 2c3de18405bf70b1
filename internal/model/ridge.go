package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// LinearModel predicts Intercept + Σ Coefficients[i]·x[i].
type LinearModel struct {
	Kind         string    `json:"kind"`
	Lambda       float64   `json:"lambda"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Predict evaluates the model on one feature vector.
func (m *LinearModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("Predict: %w: got %d features, model has %d", domain.ErrSchema, len(x), len(m.Coefficients))
	}
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * x[i]
	}
	return y, nil
}

// FitRidge fits an L2-regularised least-squares model. Features are
// standardised before solving so lambda penalises every column equally;
// the returned coefficients are on the original scale.
func FitRidge(x [][]float64, y []float64, lambda float64) (*LinearModel, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("FitRidge: %w: %d rows, %d targets", domain.ErrEmptyInput, n, len(y))
	}
	p := len(x[0])

	means := make([]float64, p)
	scales := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range x {
			if len(x[i]) != p {
				return nil, fmt.Errorf("FitRidge: %w: row %d has %d features, want %d", domain.ErrSchema, i, len(x[i]), p)
			}
			col[i] = x[i][j]
		}
		means[j], scales[j] = stat.MeanStdDev(col, nil)
		if scales[j] == 0 || math.IsNaN(scales[j]) {
			scales[j] = 1
		}
	}
	yMean := stat.Mean(y, nil)

	z := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i := range x {
		for j := 0; j < p; j++ {
			z.Set(i, j, (x[i][j]-means[j])/scales[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var a mat.Dense
	a.Mul(z.T(), z)
	for j := 0; j < p; j++ {
		a.Set(j, j, a.At(j, j)+lambda)
	}
	var b mat.VecDense
	b.MulVec(z.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&a, &b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("FitRidge: solve: %w", err)
		}
		// ill-conditioned but solved; lambda=0 with collinear columns
	}

	m := &LinearModel{Kind: "ridge", Lambda: lambda, Intercept: yMean, Coefficients: make([]float64, p)}
	for j := 0; j < p; j++ {
		c := w.AtVec(j) / scales[j]
		m.Coefficients[j] = c
		m.Intercept -= c * means[j]
	}
	return m, nil
}
