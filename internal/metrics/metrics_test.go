package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()
	r.RowsIngested.Add(10)
	r.Dropped("missing_customer", 2)
	r.Dropped("invalid_currency", 0)
	r.ClippedReturns.Inc()

	assert.Equal(t, 10.0, testutil.ToFloat64(r.RowsIngested))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.RowsDropped.WithLabelValues("missing_customer")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.RowsDropped.WithLabelValues("invalid_currency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ClippedReturns))
	assert.Equal(t, 2, testutil.CollectAndCount(r.RowsDropped))
}

func TestObserveStep(t *testing.T) {
	r := NewRegistry()
	r.ObserveStep("aggregate", 150*time.Millisecond)
	r.ObserveStep("aggregate", 50*time.Millisecond)
	r.ObserveStep("train", time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(r.StepDurationSec))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.MetricsAggregated.Add(42)
	r.TestMAE.Set(1.5)

	path := filepath.Join(t.TempDir(), "spend.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "spend_daily_metrics_aggregated_total 42"), out)
	assert.True(t, strings.Contains(out, "spend_model_test_mae 1.5"), out)
}
