package pipeline

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/features"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/history"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/model"
)

var ErrModelNotLoaded = errors.New("no model loaded")

// ServingModel holds the Predictor for the most recently loaded artifacts.
// Load swaps it atomically so requests never see a half-loaded model.
type ServingModel struct {
	engine *features.Engine
	reader history.Reader

	mu        sync.RWMutex
	predictor *Predictor
}

func NewServingModel(engine *features.Engine, reader history.Reader) *ServingModel {
	return &ServingModel{engine: engine, reader: reader}
}

// Load replaces the served model. On error the previous model stays in place.
func (s *ServingModel) Load(art model.Artifacts) error {
	p, err := NewPredictor(s.engine, s.reader, art)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.predictor = p
	s.mu.Unlock()
	return nil
}

func (s *ServingModel) current() *Predictor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predictor
}

func (s *ServingModel) Predict(ctx context.Context, customerID string, target civil.Date) (Prediction, error) {
	p := s.current()
	if p == nil {
		return Prediction{}, ErrModelNotLoaded
	}
	return p.Predict(ctx, customerID, target)
}

func (s *ServingModel) Artifacts() (model.Artifacts, bool) {
	p := s.current()
	if p == nil {
		return model.Artifacts{}, false
	}
	return p.artifacts, true
}
