// Package warehouse exports daily customer metrics to BigQuery and reads
// them back for prediction.
package warehouse

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// DailyMetricRow is one row of the daily_customer_metrics table.
type DailyMetricRow struct {
	Date       civil.Date `bigquery:"date"`        // DATE, REQUIRED
	CustomerID string     `bigquery:"customer_id"` // REQUIRED

	Orders        int64   `bigquery:"orders"`
	Items         int64   `bigquery:"items"`
	GrossAmount   float64 `bigquery:"gross_amount"`
	ReturnsAmount float64 `bigquery:"returns_amount"`
	NetAmount     float64 `bigquery:"net_amount"`

	RunID    string    `bigquery:"run_id"`
	LoadedTS time.Time `bigquery:"loaded_ts"` // TIMESTAMP
}

func toRow(m domain.DailyCustomerMetric, runID string, loaded time.Time) *DailyMetricRow {
	return &DailyMetricRow{
		Date:          m.Date,
		CustomerID:    m.CustomerID,
		Orders:        m.Orders,
		Items:         m.Items,
		GrossAmount:   m.GrossAmount,
		ReturnsAmount: m.ReturnsAmount,
		NetAmount:     m.NetAmount,
		RunID:         runID,
		LoadedTS:      loaded,
	}
}

func (r *DailyMetricRow) metric() domain.DailyCustomerMetric {
	return domain.DailyCustomerMetric{
		Date:          r.Date,
		CustomerID:    r.CustomerID,
		Orders:        r.Orders,
		Items:         r.Items,
		GrossAmount:   r.GrossAmount,
		ReturnsAmount: r.ReturnsAmount,
		NetAmount:     r.NetAmount,
	}
}
