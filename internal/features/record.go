package features

import (
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// LagValues holds one lag depth's values.
type LagValues struct {
	Net    float64
	Orders int64
	Items  int64
}

// FeaturedRecord is a DailyCustomerMetric plus the derived features. Every
// field other than the calendar and derived ratios depends only on the
// customer's rows strictly before Date.
type FeaturedRecord struct {
	domain.DailyCustomerMetric

	DayOfWeek  int // 0=Monday … 6=Sunday
	DayOfMonth int
	IsWeekend  int

	RollingMeanNet   float64
	RollingStdNet    float64
	RollingMaxNet    float64
	RollingSumOrders float64

	Lags []LagValues // indexed like Config.Lags

	TotalOrders   float64
	TotalSpend    float64
	DaysActive    int
	AvgOrderValue float64

	AvgItemsPerOrder float64
	ReturnsRatio     float64
}
