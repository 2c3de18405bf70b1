package pipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/features"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/metrics"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/preprocess"
)

// Settings are the run parameters that are not collaborators.
type Settings struct {
	Start             civil.Date
	End               civil.Date
	ReportingCurrency string
	FailOnMissingRate bool
	ModelDir          string
	TestSize          float64
	Lambda            float64
}

// Deps are the collaborators of a training run. Index and Exporter are
// optional.
type Deps struct {
	Source   TransactionSource
	Cleaner  *preprocess.Cleaner
	Engine   *features.Engine
	History  HistoryStore
	Index    HistoryIndex
	Exporter MetricsExporter
	Metrics  *metrics.Registry
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps   []PipelineStep
	metrics *metrics.Registry
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(reg *metrics.Registry, steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps, metrics: reg}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially and stops at the
// first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		log := logger.FromContext(ctx).With().Str("step", step.Name()).Logger()
		stepCtx := logger.WithContext(ctx, log)

		start := time.Now()
		err := step.Execute(stepCtx, state)
		elapsed := time.Since(start)
		if p.metrics != nil {
			p.metrics.ObserveStep(step.Name(), elapsed)
		}
		if err != nil {
			log.Error().Err(err).Dur("elapsed", elapsed).Msg("step failed")
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().Dur("elapsed", elapsed).Msg("step done")
	}
	return nil
}

// NewTrainingPipeline wires the standard run: ingest, preprocess, normalize,
// aggregate, persist, optionally export, engineer features and train.
func NewTrainingPipeline(d Deps, s Settings) *Pipeline {
	steps := []PipelineStep{
		&IngestStep{Source: d.Source, Settings: s, Metrics: d.Metrics},
		&PreprocessStep{Cleaner: d.Cleaner, Metrics: d.Metrics},
		&NormalizeStep{Settings: s, Metrics: d.Metrics},
		&AggregateStep{Metrics: d.Metrics},
		&PersistHistoryStep{Store: d.History, Index: d.Index, Metrics: d.Metrics},
	}
	if d.Exporter != nil {
		steps = append(steps, &ExportStep{Exporter: d.Exporter})
	}
	steps = append(steps,
		&EngineerStep{Engine: d.Engine, Metrics: d.Metrics},
		&TrainStep{Engine: d.Engine, Settings: s, Metrics: d.Metrics},
	)
	return NewPipeline(d.Metrics, steps...)
}

// Run executes the training pipeline under a fresh run id.
func Run(ctx context.Context, d Deps, s Settings) (*PipelineState, error) {
	state := &PipelineState{RunID: uuid.NewString()}
	ctx = logger.WithRun(ctx, state.RunID)

	log := logger.FromContext(ctx)
	log.Info().
		Str("start", s.Start.String()).
		Str("end", s.End.String()).
		Msg("starting training run")

	if err := NewTrainingPipeline(d, s).Execute(ctx, state); err != nil {
		return state, err
	}
	log.Info().Msg("training run complete")
	return state, nil
}
