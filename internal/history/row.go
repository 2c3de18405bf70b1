// Package history persists daily customer metrics between runs: a Parquet
// file holds the full table and a Pebble index serves per-customer lookups.
package history

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// Reader returns a customer's metrics dated strictly before a date, in date
// order.
type Reader interface {
	CustomerHistory(ctx context.Context, customerID string, before civil.Date) ([]domain.DailyCustomerMetric, error)
}

// unixEpoch anchors the DATE column, which counts days since 1970-01-01.
var unixEpoch = civil.Date{Year: 1970, Month: 1, Day: 1}

// metricRow is the on-disk shape shared by the Parquet file and the index.
type metricRow struct {
	Date          int32   `parquet:"date,date" json:"date"`
	CustomerID    string  `parquet:"customer_id" json:"customer_id"`
	Orders        int64   `parquet:"orders" json:"orders"`
	Items         int64   `parquet:"items" json:"items"`
	GrossAmount   float64 `parquet:"gross_amount" json:"gross_amount"`
	ReturnsAmount float64 `parquet:"returns_amount" json:"returns_amount"`
	NetAmount     float64 `parquet:"net_amount" json:"net_amount"`
}

func toRow(m domain.DailyCustomerMetric) metricRow {
	return metricRow{
		Date:          int32(m.Date.DaysSince(unixEpoch)),
		CustomerID:    m.CustomerID,
		Orders:        m.Orders,
		Items:         m.Items,
		GrossAmount:   m.GrossAmount,
		ReturnsAmount: m.ReturnsAmount,
		NetAmount:     m.NetAmount,
	}
}

func fromRow(r metricRow) domain.DailyCustomerMetric {
	return domain.DailyCustomerMetric{
		Date:          unixEpoch.AddDays(int(r.Date)),
		CustomerID:    r.CustomerID,
		Orders:        r.Orders,
		Items:         r.Items,
		GrossAmount:   r.GrossAmount,
		ReturnsAmount: r.ReturnsAmount,
		NetAmount:     r.NetAmount,
	}
}

func indexKey(customerID string, d civil.Date) []byte {
	return []byte(domain.MetricKey{CustomerID: customerID, Date: d}.String())
}
