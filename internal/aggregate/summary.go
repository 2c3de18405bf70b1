package aggregate

import (
	"slices"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// Summary describes an aggregated metrics table.
type Summary struct {
	Rows             int
	Customers        int
	FirstDate        civil.Date
	LastDate         civil.Date
	TotalNet         float64
	MeanDailySpend   float64
	MedianDailySpend float64
	MeanOrders       float64
	MeanItems        float64
}

// Summarize computes descriptive statistics for logging. An empty table
// yields a zero Summary.
func Summarize(metrics []domain.DailyCustomerMetric) Summary {
	var s Summary
	if len(metrics) == 0 {
		return s
	}

	customers := make(map[string]struct{})
	nets := make([]float64, 0, len(metrics))
	var orders, items int64
	s.FirstDate, s.LastDate = metrics[0].Date, metrics[0].Date
	for _, m := range metrics {
		customers[m.CustomerID] = struct{}{}
		nets = append(nets, m.NetAmount)
		s.TotalNet += m.NetAmount
		orders += m.Orders
		items += m.Items
		if m.Date.Before(s.FirstDate) {
			s.FirstDate = m.Date
		}
		if m.Date.After(s.LastDate) {
			s.LastDate = m.Date
		}
	}

	n := float64(len(metrics))
	s.Rows = len(metrics)
	s.Customers = len(customers)
	s.MeanDailySpend = s.TotalNet / n
	s.MeanOrders = float64(orders) / n
	s.MeanItems = float64(items) / n

	slices.Sort(nets)
	mid := len(nets) / 2
	if len(nets)%2 == 1 {
		s.MedianDailySpend = nets[mid]
	} else {
		s.MedianDailySpend = (nets[mid-1] + nets[mid]) / 2
	}
	return s
}
