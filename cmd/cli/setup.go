package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/config"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/features"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/history"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/ingest"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/metrics"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/model"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/pipeline"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/preprocess"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/warehouse"
)

const (
	metricsFileName = "daily_customer_metrics.parquet"
	indexDirName    = "history.pebble"
	modelDirName    = "model"
)

// env is what every subcommand needs: parsed config and a logging context.
type env struct {
	cfg config.Config
	ctx context.Context
	log zerolog.Logger
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Path to YAML config file (defaults plus SPEND_* env when empty)")
}

func setup(ctx context.Context, path string, out io.Writer) (*env, error) {
	cfg, err := config.Load(path, path == "")
	if err != nil {
		return nil, err
	}
	log, err := logger.Build(out, cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, ctx: logger.WithContext(ctx, log), log: log}, nil
}

func (e *env) featureConfig() features.Config {
	return features.Config{
		Window:  e.cfg.Features.Window,
		Lags:    e.cfg.Features.Lags,
		Workers: e.cfg.Features.Workers,
	}
}

func (e *env) engine() (*features.Engine, error) {
	return features.NewEngine(e.featureConfig())
}

func (e *env) parquetStore() *history.ParquetStore {
	return history.NewParquetStore(filepath.Join(e.cfg.Artifacts.Dir, metricsFileName))
}

func (e *env) modelDir() string {
	return filepath.Join(e.cfg.Artifacts.Dir, modelDirName)
}

// source returns the local data directory, backed by the bucket unless
// source.local_only is set. The returned closer is never nil.
func (e *env) source() (ingest.Source, func() error, error) {
	local := ingest.LocalSource{Dir: e.cfg.Source.DataDir}
	if e.cfg.Source.LocalOnly {
		return local, func() error { return nil }, nil
	}
	gcs, err := ingest.NewGCSSource(e.ctx, e.cfg.Source.Bucket)
	if err != nil {
		return nil, nil, err
	}
	return ingest.CachedSource{Cache: local, Remote: gcs}, gcs.Close, nil
}

// openIndex opens the Pebble index and fills it from the Parquet table when
// it is empty.
func (e *env) openIndex() (*history.PebbleIndex, error) {
	idx, err := history.OpenPebbleIndex(filepath.Join(e.cfg.Artifacts.Dir, indexDirName))
	if err != nil {
		return nil, err
	}
	n, err := idx.Count()
	if err != nil {
		idx.Close()
		return nil, err
	}
	if n > 0 {
		return idx, nil
	}
	all, err := e.parquetStore().Load(e.ctx)
	if err != nil {
		idx.Close()
		return nil, err
	}
	if len(all) > 0 {
		e.log.Info().Int("rows", len(all)).Msg("rebuilding history index from parquet")
		if err := idx.Rebuild(e.ctx, all); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

func (e *env) warehouseRepo() (*warehouse.BigQueryMetricsRepository, error) {
	w := e.cfg.Warehouse
	return warehouse.NewBigQueryMetricsRepository(e.ctx, w.ProjectID, w.Dataset, w.Table)
}

// trainingDeps wires the pipeline collaborators around an already open index.
// The returned cleanup closes the bucket and warehouse clients.
func (e *env) trainingDeps(idx *history.PebbleIndex, reg *metrics.Registry) (pipeline.Deps, func(), error) {
	src, closeSrc, err := e.source()
	if err != nil {
		return pipeline.Deps{}, nil, err
	}
	engine, err := e.engine()
	if err != nil {
		closeSrc()
		return pipeline.Deps{}, nil, err
	}

	deps := pipeline.Deps{
		Source:  ingest.NewLoader(src, e.cfg.Source.Prefix),
		Cleaner: preprocess.NewCleaner(e.cfg.Features.AllowedCurrencies),
		Engine:  engine,
		History: e.parquetStore(),
		Index:   idx,
		Metrics: reg,
	}
	cleanup := func() { closeSrc() }

	if e.cfg.Warehouse.Enabled {
		repo, err := e.warehouseRepo()
		if err != nil {
			closeSrc()
			return pipeline.Deps{}, nil, err
		}
		deps.Exporter = repo
		cleanup = func() {
			repo.Close()
			closeSrc()
		}
	}
	return deps, cleanup, nil
}

func (e *env) settings(start, end civil.Date) pipeline.Settings {
	return pipeline.Settings{
		Start:             start,
		End:               end,
		ReportingCurrency: e.cfg.Features.ReportingCurrency,
		FailOnMissingRate: e.cfg.Currency.FailOnMissingRate,
		ModelDir:          e.modelDir(),
		TestSize:          e.cfg.Model.TestSize,
		Lambda:            e.cfg.Model.Lambda,
	}
}

func (e *env) loadArtifacts() (model.Artifacts, error) {
	art, err := model.LoadArtifacts(e.modelDir())
	if errors.Is(err, os.ErrNotExist) {
		return model.Artifacts{}, fmt.Errorf("model not found in %s, run 'cli run' first: %w", e.modelDir(), err)
	}
	return art, err
}

// dateRange resolves the run's file dates, preferring explicit flag values.
func (e *env) dateRange(startFlag, endFlag string) (civil.Date, civil.Date, error) {
	if startFlag == "" {
		startFlag = e.cfg.Source.StartDate
	}
	if endFlag == "" {
		endFlag = e.cfg.Source.EndDate
	}
	start, err := parseDateFlag("start", startFlag)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	end, err := parseDateFlag("end", endFlag)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	if end.Before(start) {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: end %s before start %s", domain.ErrConfig, end, start)
	}
	return start, end, nil
}

func parseDateFlag(name, value string) (civil.Date, error) {
	if value == "" {
		return civil.Date{}, fmt.Errorf("%w: -%s is required", domain.ErrConfig, name)
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: invalid -%s %q, use YYYY-MM-DD", domain.ErrConfig, name, value)
	}
	return d, nil
}
