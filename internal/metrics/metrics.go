package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Registry struct {
	reg *prometheus.Registry

	RowsIngested      prometheus.Counter
	DuplicatesRemoved prometheus.Counter
	RowsDropped       *prometheus.CounterVec // by reason
	MissingRateRows   prometheus.Counter
	MetricsAggregated prometheus.Counter
	HistoryRowsAdded  prometheus.Counter
	FeaturesBuilt     prometheus.Counter
	ClippedReturns    prometheus.Counter
	StepDurationSec   *prometheus.HistogramVec

	// last trained model
	TestMAE  prometheus.Gauge
	TestRMSE prometheus.Gauge
	TestR2   prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	ingested := prometheus.NewCounter(prometheus.CounterOpts{Name: "spend_rows_ingested_total"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "spend_duplicates_removed_total"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "spend_rows_dropped_total"}, []string{"reason"})
	missingRate := prometheus.NewCounter(prometheus.CounterOpts{Name: "spend_missing_fx_rate_rows_total"})
	aggregated := prometheus.NewCounter(prometheus.CounterOpts{Name: "spend_daily_metrics_aggregated_total"})
	historyAdded := prometheus.NewCounter(prometheus.CounterOpts{Name: "spend_history_rows_added_total"})
	built := prometheus.NewCounter(prometheus.CounterOpts{Name: "spend_feature_rows_built_total"})
	clipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "spend_returns_ratio_clipped_total"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spend_pipeline_step_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	mae := prometheus.NewGauge(prometheus.GaugeOpts{Name: "spend_model_test_mae"})
	rmse := prometheus.NewGauge(prometheus.GaugeOpts{Name: "spend_model_test_rmse"})
	r2 := prometheus.NewGauge(prometheus.GaugeOpts{Name: "spend_model_test_r2"})

	r.MustRegister(ingested, duplicates, dropped, missingRate, aggregated, historyAdded, built, clipped, stepDuration, mae, rmse, r2)
	return &Registry{
		reg:               r,
		RowsIngested:      ingested,
		DuplicatesRemoved: duplicates,
		RowsDropped:       dropped,
		MissingRateRows:   missingRate,
		MetricsAggregated: aggregated,
		HistoryRowsAdded:  historyAdded,
		FeaturesBuilt:     built,
		ClippedReturns:    clipped,
		StepDurationSec:   stepDuration,
		TestMAE:           mae,
		TestRMSE:          rmse,
		TestR2:            r2,
	}
}

// Dropped adds n to the dropped-rows counter for reason. Zero counts still
// create the series so every reason shows up in the output.
func (r *Registry) Dropped(reason string, n int) {
	r.RowsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveStep records how long a pipeline step took.
func (r *Registry) ObserveStep(step string, d time.Duration) {
	r.StepDurationSec.WithLabelValues(step).Observe(d.Seconds())
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: write textfile %s: %w", path, err)
	}
	return nil
}
