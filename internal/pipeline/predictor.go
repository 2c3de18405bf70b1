package pipeline

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"gonum.org/v1/gonum/stat"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/features"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/history"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/model"
)

// recentDays is the history tail summarised in a Prediction.
const recentDays = 7

// Prediction is a next-day forecast with the history it was based on.
type Prediction struct {
	CustomerID     string             `json:"customer_id"`
	TargetDate     civil.Date         `json:"target_date"`
	PredictedNet   float64            `json:"predicted_net"`
	HistoricalDays int                `json:"historical_days"`
	RecentMean     float64            `json:"recent_7d_mean"`
	RecentStd      float64            `json:"recent_7d_std"`
	ModelTestMAE   float64            `json:"model_test_mae"`
	Features       map[string]float64 `json:"features"`
}

// Predictor serves single-customer predictions from a trained model.
type Predictor struct {
	engine    *features.Engine
	history   history.Reader
	artifacts model.Artifacts
}

// NewPredictor checks that the model was trained on the engine's columns.
func NewPredictor(engine *features.Engine, reader history.Reader, art model.Artifacts) (*Predictor, error) {
	if err := engine.Registry().Verify(art.Columns); err != nil {
		return nil, fmt.Errorf("NewPredictor: model columns do not match feature registry: %w", err)
	}
	return &Predictor{engine: engine, history: reader, artifacts: art}, nil
}

// Features returns the feature record for customerID on target without
// scoring it.
func (p *Predictor) Features(ctx context.Context, customerID string, target civil.Date) (features.FeaturedRecord, []domain.DailyCustomerMetric, error) {
	hist, err := p.history.CustomerHistory(ctx, customerID, target)
	if err != nil {
		return features.FeaturedRecord{}, nil, fmt.Errorf("Features: %w", err)
	}
	if len(hist) == 0 {
		return features.FeaturedRecord{}, nil, fmt.Errorf("Features: %w for customer %s before %s", domain.ErrNoHistory, customerID, target)
	}
	rec, err := p.engine.SingleRowAhead(hist, customerID, target)
	if err != nil {
		return features.FeaturedRecord{}, nil, fmt.Errorf("Features: %w", err)
	}
	return rec, hist, nil
}

// Predict forecasts customerID's net amount on target.
func (p *Predictor) Predict(ctx context.Context, customerID string, target civil.Date) (Prediction, error) {
	rec, hist, err := p.Features(ctx, customerID, target)
	if err != nil {
		return Prediction{}, err
	}

	values := p.engine.Registry().Values(&rec)
	x := make([]float64, len(p.artifacts.Columns))
	for i, name := range p.artifacts.Columns {
		x[i] = values[name]
	}
	y, err := p.artifacts.Model.Predict(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("Predict: %w", err)
	}

	tail := hist[max(0, len(hist)-recentDays):]
	nets := make([]float64, len(tail))
	for i, m := range tail {
		nets[i] = m.NetAmount
	}
	mean, std := stat.MeanStdDev(nets, nil)
	if len(nets) < 2 {
		std = 0
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("customer_id", customerID).
		Str("target_date", target.String()).
		Float64("predicted_net", y).
		Int("historical_days", len(hist)).
		Msg("predicted next-day spend")

	return Prediction{
		CustomerID:     customerID,
		TargetDate:     target,
		PredictedNet:   y,
		HistoricalDays: len(hist),
		RecentMean:     mean,
		RecentStd:      std,
		ModelTestMAE:   p.artifacts.Report.Test.MAE,
		Features:       values,
	}, nil
}
