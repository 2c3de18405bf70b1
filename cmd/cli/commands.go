package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/gcsuploader"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/history"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/metrics"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/pipeline"
)

func runPipeline(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := configFlag(fs)
	startFlag := fs.String("start", "", "First daily file date (overrides source.start_date)")
	endFlag := fs.String("end", "", "Last daily file date (overrides source.end_date)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	e, err := setup(ctx, *cfgPath, os.Stdout)
	if err != nil {
		return err
	}

	start, end, err := e.dateRange(*startFlag, *endFlag)
	if err != nil {
		return err
	}

	idx, err := history.OpenPebbleIndex(filepath.Join(e.cfg.Artifacts.Dir, indexDirName))
	if err != nil {
		return err
	}
	defer idx.Close()

	reg := metrics.NewRegistry()
	deps, closeDeps, err := e.trainingDeps(idx, reg)
	if err != nil {
		return err
	}
	defer closeDeps()

	state, runErr := pipeline.Run(e.ctx, deps, e.settings(start, end))

	if path := e.cfg.Metrics.TextfilePath; path != "" {
		if err := reg.WriteTextfile(path); err != nil {
			e.log.Error().Err(err).Msg("writing metrics textfile")
		}
	}
	if runErr != nil {
		return runErr
	}

	rep := state.ModelReport
	fmt.Printf("Run %s complete: %d daily rows (%d new), %d feature rows.\n",
		state.RunID, len(state.History), state.Merge.Added, len(state.Features.Records))
	fmt.Printf("Test MAE %.2f, RMSE %.2f, R² %.4f (%d test samples, %s to %s).\n",
		rep.Test.MAE, rep.Test.RMSE, rep.Test.R2, rep.Test.Samples, rep.TestDates.Start, rep.TestDates.End)
	return nil
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	cfgPath := configFlag(fs)
	customer := fs.String("customer", "", "Customer ID (e.g. C00042)")
	date := fs.String("date", "", "Target date (YYYY-MM-DD)")
	fromWarehouse := fs.Bool("from-warehouse", false, "Read customer history from BigQuery instead of local artifacts")
	asJSON := fs.Bool("json", false, "Print the prediction as JSON")
	fs.Parse(args)

	p, e, closer, target, err := newPredictor(*cfgPath, *customer, *date, *fromWarehouse)
	if err != nil {
		return err
	}
	defer closer()

	pred, err := p.Predict(e.ctx, *customer, target)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pred)
	}
	printPrediction(os.Stdout, pred)
	return nil
}

func runFeatures(args []string) error {
	fs := flag.NewFlagSet("features", flag.ExitOnError)
	cfgPath := configFlag(fs)
	customer := fs.String("customer", "", "Customer ID")
	date := fs.String("date", "", "Target date (YYYY-MM-DD)")
	fs.Parse(args)

	if *customer == "" {
		return fmt.Errorf("%w: -customer is required", domain.ErrConfig)
	}
	target, err := parseDateFlag("date", *date)
	if err != nil {
		return err
	}

	e, err := setup(context.Background(), *cfgPath, os.Stderr)
	if err != nil {
		return err
	}
	engine, err := e.engine()
	if err != nil {
		return err
	}
	idx, err := e.openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	prior, err := idx.CustomerHistory(e.ctx, *customer, target)
	if err != nil {
		return err
	}
	rec, err := engine.SingleRowAhead(prior, *customer, target)
	if err != nil {
		return err
	}
	fmt.Printf("%s on %s (%d prior days)\n", *customer, target, len(prior))
	reg := engine.Registry()
	vec := reg.Vector(&rec)
	for i, name := range reg.Columns() {
		fmt.Printf("  %-30s %g\n", name, vec[i])
	}
	return nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cfgPath := configFlag(fs)
	fs.Parse(args)

	e, err := setup(context.Background(), *cfgPath, os.Stdout)
	if err != nil {
		return err
	}
	if e.cfg.Warehouse.ProjectID == "" {
		return fmt.Errorf("%w: warehouse.project_id is required", domain.ErrConfig)
	}
	repo, err := e.warehouseRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureTable(e.ctx); err != nil {
		return err
	}
	fmt.Printf("Table %s.%s.%s is ready.\n", e.cfg.Warehouse.ProjectID, e.cfg.Warehouse.Dataset, e.cfg.Warehouse.Table)
	return nil
}

func runPublish(args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	cfgPath := configFlag(fs)
	dest := fs.String("dest", "", "Destination gs://bucket/prefix (overrides artifacts.publish_uri)")
	withHistory := fs.Bool("history", true, "Also upload the daily metrics parquet file")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	e, err := setup(ctx, *cfgPath, os.Stdout)
	if err != nil {
		return err
	}
	uri := e.cfg.Artifacts.PublishURI
	if *dest != "" {
		uri = *dest
	}
	if uri == "" {
		return fmt.Errorf("%w: -dest or artifacts.publish_uri is required", domain.ErrConfig)
	}
	bucket, prefix, err := gcsuploader.ParseURI(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	// Objects are grouped under the run that produced the model.
	art, err := e.loadArtifacts()
	if err != nil {
		return err
	}
	prefix = path.Join(prefix, art.Report.RunID)

	files, err := gcsuploader.RegularFiles(e.modelDir())
	if err != nil {
		return err
	}
	if *withHistory {
		files = append(files, e.parquetStore().Path())
	}

	up, err := gcsuploader.NewUploader(e.ctx, bucket)
	if err != nil {
		return err
	}
	defer up.Close()

	uris, err := up.UploadFiles(e.ctx, prefix, files)
	if err != nil {
		return err
	}
	for _, u := range uris {
		fmt.Printf("Uploaded %s\n", u)
	}
	return nil
}

// newPredictor wires a Predictor over the local index or the warehouse.
func newPredictor(cfgPath, customer, date string, fromWarehouse bool) (*pipeline.Predictor, *env, func(), civil.Date, error) {
	fail := func(err error) (*pipeline.Predictor, *env, func(), civil.Date, error) {
		return nil, nil, nil, civil.Date{}, err
	}
	if customer == "" {
		return fail(fmt.Errorf("%w: -customer is required", domain.ErrConfig))
	}
	target, err := parseDateFlag("date", date)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	e, err := setup(ctx, cfgPath, os.Stderr)
	if err != nil {
		cancel()
		return fail(err)
	}
	engine, err := e.engine()
	if err != nil {
		cancel()
		return fail(err)
	}
	art, err := e.loadArtifacts()
	if err != nil {
		cancel()
		return fail(err)
	}

	var reader history.Reader
	var closeReader func() error
	if fromWarehouse {
		repo, err := e.warehouseRepo()
		if err != nil {
			cancel()
			return fail(err)
		}
		reader, closeReader = repo, repo.Close
	} else {
		idx, err := e.openIndex()
		if err != nil {
			cancel()
			return fail(err)
		}
		reader, closeReader = idx, idx.Close
	}

	p, err := pipeline.NewPredictor(engine, reader, art)
	if err != nil {
		closeReader()
		cancel()
		return fail(err)
	}
	closer := func() {
		closeReader()
		cancel()
	}
	return p, e, closer, target, nil
}

func printPrediction(w io.Writer, p pipeline.Prediction) {
	fmt.Fprintf(w, "Customer ID:          %s\n", p.CustomerID)
	fmt.Fprintf(w, "Target date:          %s\n", p.TargetDate)
	fmt.Fprintf(w, "Predicted net:        %.2f\n", p.PredictedNet)
	fmt.Fprintf(w, "Days of history:      %d\n", p.HistoricalDays)
	fmt.Fprintf(w, "Recent 7-day mean:    %.2f\n", p.RecentMean)
	fmt.Fprintf(w, "Recent 7-day std:     %.2f\n", p.RecentStd)
	fmt.Fprintf(w, "Model test MAE:       %.2f\n", p.ModelTestMAE)
}
