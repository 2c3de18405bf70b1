package features

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

var defaultColumns = []string{
	"orders", "items",
	"day_of_week", "day_of_month", "is_weekend",
	"rolling_3d_mean_net", "rolling_3d_std_net", "rolling_3d_max_net", "rolling_3d_sum_orders",
	"lag_1d_net_gbp", "lag_1d_orders", "lag_1d_items",
	"lag_2d_net_gbp", "lag_2d_orders", "lag_2d_items",
	"customer_total_orders", "customer_total_spend", "customer_days_active", "customer_avg_order_value",
	"avg_items_per_order", "returns_ratio",
}

func TestRegistryDefaultColumns(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	assert.Equal(t, defaultColumns, r.Columns())
	assert.Equal(t, len(defaultColumns), r.Len())
}

func TestRegistryFollowsConfig(t *testing.T) {
	r := NewRegistry(Config{Window: 7, Lags: []int{1, 7}})
	cols := r.Columns()
	assert.Contains(t, cols, "rolling_7d_mean_net")
	assert.Contains(t, cols, "lag_7d_items")
	assert.NotContains(t, cols, "lag_2d_items")
}

// Every column must read its own field: distinct field values give a
// vector with no repeats.
func TestRegistryColumnsReadDistinctFields(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	rec := FeaturedRecord{
		DailyCustomerMetric: domain.DailyCustomerMetric{Orders: 1, Items: 2},
		DayOfWeek:           3,
		DayOfMonth:          4,
		IsWeekend:           5,
		RollingMeanNet:      6,
		RollingStdNet:       7,
		RollingMaxNet:       8,
		RollingSumOrders:    9,
		Lags:                []LagValues{{Net: 10, Orders: 11, Items: 12}, {Net: 13, Orders: 14, Items: 15}},
		TotalOrders:         16,
		TotalSpend:          17,
		DaysActive:          18,
		AvgOrderValue:       19,
		AvgItemsPerOrder:    20,
		ReturnsRatio:        21,
	}
	vec := r.Vector(&rec)
	want := make([]float64, 21)
	for i := range want {
		want[i] = float64(i + 1)
	}
	assert.Equal(t, want, vec)
}

func TestRegistryVerify(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	shuffled := slices.Clone(defaultColumns)
	slices.Reverse(shuffled)
	require.NoError(t, r.Verify(shuffled))

	err := r.Verify(defaultColumns[1:])
	require.ErrorIs(t, err, domain.ErrSchema)
	assert.Contains(t, err.Error(), "missing [orders]")

	err = r.Verify(append(slices.Clone(defaultColumns), "net_amount"))
	require.ErrorIs(t, err, domain.ErrSchema)
	assert.Contains(t, err.Error(), "unexpected [net_amount]")
}
