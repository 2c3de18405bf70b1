package pipeline

import (
	"context"
	"fmt"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/aggregate"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/currency"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/features"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/history"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/metrics"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/model"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/preprocess"
)

// PipelineStep represents a single step in the training pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID string

	Rates       []domain.FxRate
	Raw         []domain.RawTransaction
	Lines       []domain.TransactionLine
	CleanReport preprocess.Report
	Normalized  []domain.NormalizedLine
	RateReport  currency.Report
	Daily       []domain.DailyCustomerMetric // this run's aggregates
	Summary     aggregate.Summary
	Merge       history.MergeResult
	History     []domain.DailyCustomerMetric // full persisted table
	Features    features.Batch
	Model       *model.LinearModel
	ModelReport model.Report
}

// Step 1: IngestStep loads the FX table and the daily transaction files.
type IngestStep struct {
	Source   TransactionSource
	Settings Settings
	Metrics  *metrics.Registry
}

func (s *IngestStep) Name() string { return "ingest" }

func (s *IngestStep) Execute(ctx context.Context, state *PipelineState) error {
	rates, err := s.Source.LoadRates(ctx)
	if err != nil {
		return err
	}
	raw, err := s.Source.LoadTransactions(ctx, s.Settings.Start, s.Settings.End)
	if err != nil {
		return err
	}
	state.Rates = rates
	state.Raw = raw
	s.Metrics.RowsIngested.Add(float64(len(raw)))
	return nil
}

// Step 2: PreprocessStep deduplicates, imputes and validates the raw rows.
type PreprocessStep struct {
	Cleaner *preprocess.Cleaner
	Metrics *metrics.Registry
}

func (s *PreprocessStep) Name() string { return "preprocess" }

func (s *PreprocessStep) Execute(ctx context.Context, state *PipelineState) error {
	lines, rep, err := s.Cleaner.Clean(ctx, state.Raw)
	state.CleanReport = rep
	s.Metrics.DuplicatesRemoved.Add(float64(rep.Duplicates))
	s.Metrics.Dropped("missing_customer", rep.MissingCustomer)
	s.Metrics.Dropped("unimputable_price", rep.UnimputablePrice)
	s.Metrics.Dropped("invalid_currency", rep.InvalidCurrency)
	s.Metrics.Dropped("invalid_price", rep.InvalidPrice)
	s.Metrics.Dropped("invalid_timestamp", rep.InvalidTimestamp)
	s.Metrics.Dropped("invalid_line", rep.InvalidLine)
	if err != nil {
		return err
	}
	state.Lines = lines
	return nil
}

// Step 3: NormalizeStep prices every line in the reporting currency.
type NormalizeStep struct {
	Settings Settings
	Metrics  *metrics.Registry
}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	table, err := currency.NewRateTable(state.Rates, s.Settings.ReportingCurrency)
	if err != nil {
		return err
	}
	normalized, rep := currency.NewNormalizer(table, s.Settings.FailOnMissingRate).Normalize(state.Lines)
	state.RateReport = rep
	s.Metrics.MissingRateRows.Add(float64(rep.MissingRows))
	if err := rep.Err(); err != nil {
		return err
	}
	if rep.MissingRows > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Int("rows", rep.MissingRows).
			Msg("excluding rows without an FX rate")
		normalized = currency.Resolved(normalized)
		s.Metrics.Dropped("missing_fx_rate", rep.MissingRows)
	}
	state.Normalized = normalized
	return nil
}

// Step 4: AggregateStep builds one metric row per (customer, day).
type AggregateStep struct {
	Metrics *metrics.Registry
}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *PipelineState) error {
	daily, err := aggregate.Aggregate(state.Normalized)
	if err != nil {
		return err
	}
	state.Daily = daily
	state.Summary = aggregate.Summarize(daily)
	s.Metrics.MetricsAggregated.Add(float64(len(daily)))

	sum := state.Summary
	log := logger.FromContext(ctx)
	log.Info().
		Int("rows", sum.Rows).
		Int("customers", sum.Customers).
		Str("first_date", sum.FirstDate.String()).
		Str("last_date", sum.LastDate.String()).
		Float64("total_net", sum.TotalNet).
		Float64("mean_daily_spend", sum.MeanDailySpend).
		Float64("median_daily_spend", sum.MedianDailySpend).
		Msg("aggregated daily customer metrics")
	return nil
}

// Step 5: PersistHistoryStep merges the run into the persisted table and
// refreshes the per-customer index.
type PersistHistoryStep struct {
	Store   HistoryStore
	Index   HistoryIndex
	Metrics *metrics.Registry
}

func (s *PersistHistoryStep) Name() string { return "persist_history" }

func (s *PersistHistoryStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Store.Append(ctx, state.Daily)
	if err != nil {
		return err
	}
	all, err := s.Store.Load(ctx)
	if err != nil {
		return err
	}
	if s.Index != nil {
		if err := s.Index.Rebuild(ctx, all); err != nil {
			return err
		}
	}
	state.Merge = res
	state.History = all
	s.Metrics.HistoryRowsAdded.Add(float64(res.Added))

	log := logger.FromContext(ctx)
	log.Info().
		Int("added", res.Added).
		Int("unchanged", res.Unchanged).
		Int("total", res.Total).
		Msg("merged daily metrics into history")
	return nil
}

// Step 6: ExportStep streams the run's metrics to the warehouse.
type ExportStep struct {
	Exporter MetricsExporter
}

func (s *ExportStep) Name() string { return "export" }

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Exporter.InsertMetrics(ctx, state.RunID, state.Daily)
}

// Step 7: EngineerStep computes features over the full history.
type EngineerStep struct {
	Engine  *features.Engine
	Metrics *metrics.Registry
}

func (s *EngineerStep) Name() string { return "engineer_features" }

func (s *EngineerStep) Execute(ctx context.Context, state *PipelineState) error {
	batch, err := s.Engine.TrainingBatch(ctx, state.History)
	if err != nil {
		return err
	}
	state.Features = batch
	s.Metrics.FeaturesBuilt.Add(float64(len(batch.Records)))
	s.Metrics.ClippedReturns.Add(float64(batch.Diagnostics.ClippedReturns))

	log := logger.FromContext(ctx)
	log.Info().
		Int("rows", batch.Diagnostics.Rows).
		Int("customers", batch.Diagnostics.Customers).
		Int("columns", s.Engine.Registry().Len()).
		Msg("engineered features")
	if batch.Diagnostics.ClippedReturns > 0 {
		log.Warn().Int("rows", batch.Diagnostics.ClippedReturns).Msg("clipped positive returns ratio")
	}
	return nil
}

// Step 8: TrainStep fits the model and writes its artifacts.
type TrainStep struct {
	Engine   *features.Engine
	Settings Settings
	Metrics  *metrics.Registry
}

func (s *TrainStep) Name() string { return "train" }

func (s *TrainStep) Execute(ctx context.Context, state *PipelineState) error {
	reg := s.Engine.Registry()
	samples := make([]model.Sample, len(state.Features.Records))
	for i := range state.Features.Records {
		rec := &state.Features.Records[i]
		samples[i] = model.Sample{
			Date:       rec.Date,
			CustomerID: rec.CustomerID,
			X:          reg.Vector(rec),
			Y:          rec.NetAmount,
		}
	}

	m, rep, err := model.Train(samples, reg.Columns(), model.Options{
		TestSize: s.Settings.TestSize,
		Lambda:   s.Settings.Lambda,
		RunID:    state.RunID,
	})
	if err != nil {
		return err
	}
	art := model.Artifacts{Model: m, Columns: reg.Columns(), Report: rep}
	if err := art.Save(s.Settings.ModelDir); err != nil {
		return fmt.Errorf("TrainStep: %w", err)
	}

	state.Model = m
	state.ModelReport = rep
	s.Metrics.TestMAE.Set(rep.Test.MAE)
	s.Metrics.TestRMSE.Set(rep.Test.RMSE)
	s.Metrics.TestR2.Set(rep.Test.R2)

	log := logger.FromContext(ctx)
	log.Info().
		Int("train_samples", rep.Train.Samples).
		Int("test_samples", rep.Test.Samples).
		Float64("train_mae", rep.Train.MAE).
		Float64("test_mae", rep.Test.MAE).
		Float64("test_rmse", rep.Test.RMSE).
		Float64("test_r2", rep.Test.R2).
		Str("dir", s.Settings.ModelDir).
		Msg("trained model")
	return nil
}
