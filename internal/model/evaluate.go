package model

import (
	"math"
)

// Metrics are the regression scores on one sample set.
type Metrics struct {
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
	R2      float64 `json:"r2"`
	Samples int     `json:"samples"`
}

// Evaluate scores m on samples. R² of a constant target is 1 for a perfect
// fit and 0 otherwise.
func Evaluate(m *LinearModel, samples []Sample) (Metrics, error) {
	if len(samples) == 0 {
		return Metrics{}, nil
	}
	var absSum, sqSum, ySum float64
	for _, s := range samples {
		pred, err := m.Predict(s.X)
		if err != nil {
			return Metrics{}, err
		}
		d := s.Y - pred
		absSum += math.Abs(d)
		sqSum += d * d
		ySum += s.Y
	}
	n := float64(len(samples))
	yMean := ySum / n

	var tot float64
	for _, s := range samples {
		d := s.Y - yMean
		tot += d * d
	}

	r2 := 0.0
	switch {
	case tot > 0:
		r2 = 1 - sqSum/tot
	case sqSum == 0:
		r2 = 1
	}
	return Metrics{
		MAE:     absSum / n,
		RMSE:    math.Sqrt(sqSum / n),
		R2:      r2,
		Samples: len(samples),
	}, nil
}
