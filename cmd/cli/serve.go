package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/api/handlers"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/api/middleware"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/jobs"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/jobs/inmemory"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/metrics"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/pipeline"
)

const runTimeout = 30 * time.Minute

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := configFlag(fs)
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	fs.Parse(args)

	e, err := setup(context.Background(), *cfgPath, os.Stdout)
	if err != nil {
		return err
	}
	log := e.log
	listen := e.cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}

	// One Pebble handle serves both prediction reads and training rebuilds.
	idx, err := e.openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	engine, err := e.engine()
	if err != nil {
		return err
	}
	serving := pipeline.NewServingModel(engine, idx)
	if err := loadServingModel(e, serving); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		log.Warn().Str("dir", e.modelDir()).Msg("No trained model yet - predictions disabled until a run completes")
	}

	reg := metrics.NewRegistry()
	deps, closeDeps, err := e.trainingDeps(idx, reg)
	if err != nil {
		return err
	}
	defer closeDeps()

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(e.cfg.Server.QueueSize, e.cfg.Server.MaxRetries, store)

	workerCtx, cancelWorker := context.WithCancel(e.ctx)
	defer cancelWorker()
	if err := queue.Start(workerCtx, trainingHandler(e, deps, serving, reg)); err != nil {
		return err
	}
	log.Info().Msg("Started training worker")

	predictions := handlers.NewPredictionsHandler(serving)
	runs := handlers.NewRunsHandler(queue, store, e.cfg.Source.StartDate, e.cfg.Source.EndDate)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/predictions", predictions.GetPrediction)
	mux.HandleFunc("GET /api/model", predictions.GetModel)
	mux.HandleFunc("POST /api/runs", runs.CreateRun)
	mux.HandleFunc("GET /api/runs", runs.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", runs.GetRun)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, loaded := serving.Artifacts()
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":       "healthy",
			"model_loaded": loaded,
			"time":         time.Now().UTC().Format(time.RFC3339),
		})
	})

	server := &http.Server{
		Addr: listen,
		Handler: middleware.Chain(mux,
			middleware.RequestID(log),
			middleware.Logger,
			middleware.Recovery,
			middleware.CORS,
		),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listen).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Let an in-flight run finish before the index closes.
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
	return nil
}

func loadServingModel(e *env, serving *pipeline.ServingModel) error {
	art, err := e.loadArtifacts()
	if err != nil {
		return err
	}
	return serving.Load(art)
}

// trainingHandler runs the pipeline for a job and, on success, swaps the
// served model for the freshly written artifacts.
func trainingHandler(e *env, deps pipeline.Deps, serving *pipeline.ServingModel, reg *metrics.Registry) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.TrainingJob) error {
		start, end, err := e.dateRange(job.StartDate, job.EndDate)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()

		state, err := pipeline.Run(ctx, deps, e.settings(start, end))
		if path := e.cfg.Metrics.TextfilePath; path != "" {
			if werr := reg.WriteTextfile(path); werr != nil {
				log := logger.FromContext(ctx)
				log.Error().Err(werr).Msg("writing metrics textfile")
			}
		}
		if err != nil {
			return err
		}

		if err := loadServingModel(e, serving); err != nil {
			return err
		}
		job.Result = runResult(state)
		return nil
	}
}

func runResult(state *pipeline.PipelineState) *jobs.RunResult {
	rep := state.ModelReport
	return &jobs.RunResult{
		RunID:       state.RunID,
		HistoryRows: len(state.History),
		RowsAdded:   state.Merge.Added,
		FeatureRows: len(state.Features.Records),
		TestMAE:     rep.Test.MAE,
		TestRMSE:    rep.Test.RMSE,
		TestR2:      rep.Test.R2,
		TestSamples: rep.Test.Samples,
		Features:    rep.Features,
	}
}
