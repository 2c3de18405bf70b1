package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// DailyCustomerMetric is the aggregation unit: one row per (Date, CustomerID).
type DailyCustomerMetric struct {
	Date          civil.Date
	CustomerID    string
	Orders        int64   // distinct invoices that day
	Items         int64   // sum of |quantity|
	GrossAmount   float64 // positive-quantity value
	ReturnsAmount float64 // negative-quantity value, <= 0
	NetAmount     float64 // GrossAmount + ReturnsAmount
}

// MetricKey uniquely identifies a DailyCustomerMetric.
type MetricKey struct {
	CustomerID string
	Date       civil.Date
}

func (k MetricKey) String() string {
	return fmt.Sprintf("%s#%s", k.CustomerID, k.Date)
}

// Key returns the (customer_id, date) key of the row.
func (m DailyCustomerMetric) Key() MetricKey {
	return MetricKey{CustomerID: m.CustomerID, Date: m.Date}
}

// Less orders metrics by (customer_id, date).
func Less(a, b DailyCustomerMetric) bool {
	if a.CustomerID != b.CustomerID {
		return a.CustomerID < b.CustomerID
	}
	return a.Date.Before(b.Date)
}

// CompareKeys is Less as a three-way comparison, for slices.SortStableFunc.
func CompareKeys(a, b DailyCustomerMetric) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}
