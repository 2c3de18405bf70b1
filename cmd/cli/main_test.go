package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/config"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/jobs"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/metrics"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/pipeline"
)

func TestParseDateFlag(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"2025-09-01", false},
		{"", true},
		{"01/09/2025", true},
		{"2025-13-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			_, err := parseDateFlag("date", tt.value)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrConfig) {
					t.Errorf("expected ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPrintPrediction(t *testing.T) {
	var buf bytes.Buffer
	printPrediction(&buf, pipeline.Prediction{
		CustomerID:     "C00042",
		TargetDate:     civil.Date{Year: 2025, Month: 9, Day: 15},
		PredictedNet:   123.456,
		HistoricalDays: 14,
		RecentMean:     100,
		RecentStd:      12.5,
		ModelTestMAE:   9.87,
	})

	out := buf.String()
	for _, want := range []string{"C00042", "2025-09-15", "123.46", "14", "12.50", "9.87"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestOpenIndexRebuildsFromParquet(t *testing.T) {
	cfg := config.Default()
	cfg.Artifacts.Dir = t.TempDir()
	e := &env{cfg: cfg, ctx: context.Background(), log: zerolog.Nop()}

	rows := []domain.DailyCustomerMetric{
		{Date: civil.Date{Year: 2025, Month: 9, Day: 1}, CustomerID: "C1", Orders: 1, Items: 2, GrossAmount: 10, NetAmount: 10},
		{Date: civil.Date{Year: 2025, Month: 9, Day: 2}, CustomerID: "C1", Orders: 2, Items: 3, GrossAmount: 20, NetAmount: 20},
		{Date: civil.Date{Year: 2025, Month: 9, Day: 1}, CustomerID: "C2", Orders: 1, Items: 1, GrossAmount: 5, NetAmount: 5},
	}
	if _, err := e.parquetStore().Append(e.ctx, rows); err != nil {
		t.Fatalf("append: %v", err)
	}

	idx, err := e.openIndex()
	if err != nil {
		t.Fatalf("openIndex: %v", err)
	}
	defer idx.Close()

	n, err := idx.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(rows) {
		t.Errorf("expected %d indexed rows, got %d", len(rows), n)
	}

	prior, err := idx.CustomerHistory(e.ctx, "C1", civil.Date{Year: 2025, Month: 9, Day: 2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(prior) != 1 || prior[0].NetAmount != 10 {
		t.Errorf("unexpected prior rows: %+v", prior)
	}
}

// writeDailyFiles writes fx_rates.csv and five daily files with one GBP
// invoice per customer per day.
func writeDailyFiles(t *testing.T, dir string) {
	t.Helper()
	rates := "date,currency,rate_to_gbp\n"
	for d := 1; d <= 5; d++ {
		rates += fmt.Sprintf("2024-10-%02d,USD,0.8\n2024-10-%02d,EUR,0.85\n", d, d)
	}
	if err := os.WriteFile(filepath.Join(dir, "fx_rates.csv"), []byte(rates), 0o644); err != nil {
		t.Fatal(err)
	}

	for d := 1; d <= 5; d++ {
		var b strings.Builder
		b.WriteString("invoice_id,product_id,description,quantity,timestamp,unit_price,currency,customer_id\n")
		for c := 1; c <= 4; c++ {
			fmt.Fprintf(&b, "INV%d%d,P%d,Widget,%d,2024-10-%02d 10:%02d:00,%.2f,GBP,C%d\n", c, d, c, c+d, d, c, 2.5*float64(c), c)
		}
		name := fmt.Sprintf("2024-10-%02d.csv", d)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestTrainingHandlerEndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	writeDailyFiles(t, dataDir)

	cfg := config.Default()
	cfg.Source.LocalOnly = true
	cfg.Source.DataDir = dataDir
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Features.Workers = 2
	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	e := &env{cfg: cfg, ctx: ctx, log: zerolog.Nop()}

	idx, err := e.openIndex()
	if err != nil {
		t.Fatalf("openIndex: %v", err)
	}
	defer idx.Close()

	engine, err := e.engine()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	serving := pipeline.NewServingModel(engine, idx)
	if err := loadServingModel(e, serving); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no model before the first run, got %v", err)
	}

	reg := metrics.NewRegistry()
	deps, cleanup, err := e.trainingDeps(idx, reg)
	if err != nil {
		t.Fatalf("trainingDeps: %v", err)
	}
	defer cleanup()
	handle := trainingHandler(e, deps, serving, reg)

	job := &jobs.TrainingJob{StartDate: "2024-10-01", EndDate: "2024-10-05"}
	if err := handle(ctx, job); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res := job.Result
	if res == nil {
		t.Fatal("expected a run result")
	}
	if res.HistoryRows != 20 || res.RowsAdded != 20 || res.FeatureRows != 20 {
		t.Errorf("unexpected row counts %+v", res)
	}
	if res.TestSamples != 4 || res.Features != engine.Registry().Len() {
		t.Errorf("unexpected model summary %+v", res)
	}

	pred, err := serving.Predict(ctx, "C2", civil.Date{Year: 2024, Month: 10, Day: 6})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.HistoricalDays != 5 {
		t.Errorf("expected 5 days of history, got %d", pred.HistoricalDays)
	}
	// C2 spends 5.00 × (2+d) on day d
	if pred.RecentMean != 25 {
		t.Errorf("expected recent mean 25, got %v", pred.RecentMean)
	}

	again := &jobs.TrainingJob{StartDate: "2024-10-01", EndDate: "2024-10-05"}
	if err := handle(ctx, again); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Result.RowsAdded != 0 || again.Result.HistoryRows != 20 {
		t.Errorf("re-run should leave history unchanged, got %+v", again.Result)
	}
}
