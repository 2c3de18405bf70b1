package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

type column struct {
	name  string
	value func(r *FeaturedRecord) float64
}

// Registry is the ordered list of model feature columns. Names and values
// come from the same table, so the list can never drift from what the
// engine writes.
type Registry struct {
	columns []column
}

// NewRegistry builds the column table for cfg.
func NewRegistry(cfg Config) *Registry {
	w := cfg.Window
	cols := []column{
		{"orders", func(r *FeaturedRecord) float64 { return float64(r.Orders) }},
		{"items", func(r *FeaturedRecord) float64 { return float64(r.Items) }},

		{"day_of_week", func(r *FeaturedRecord) float64 { return float64(r.DayOfWeek) }},
		{"day_of_month", func(r *FeaturedRecord) float64 { return float64(r.DayOfMonth) }},
		{"is_weekend", func(r *FeaturedRecord) float64 { return float64(r.IsWeekend) }},

		{fmt.Sprintf("rolling_%dd_mean_net", w), func(r *FeaturedRecord) float64 { return r.RollingMeanNet }},
		{fmt.Sprintf("rolling_%dd_std_net", w), func(r *FeaturedRecord) float64 { return r.RollingStdNet }},
		{fmt.Sprintf("rolling_%dd_max_net", w), func(r *FeaturedRecord) float64 { return r.RollingMaxNet }},
		{fmt.Sprintf("rolling_%dd_sum_orders", w), func(r *FeaturedRecord) float64 { return r.RollingSumOrders }},
	}

	for i, lag := range cfg.Lags {
		cols = append(cols,
			column{fmt.Sprintf("lag_%dd_net_gbp", lag), func(r *FeaturedRecord) float64 { return r.Lags[i].Net }},
			column{fmt.Sprintf("lag_%dd_orders", lag), func(r *FeaturedRecord) float64 { return float64(r.Lags[i].Orders) }},
			column{fmt.Sprintf("lag_%dd_items", lag), func(r *FeaturedRecord) float64 { return float64(r.Lags[i].Items) }},
		)
	}

	cols = append(cols,
		column{"customer_total_orders", func(r *FeaturedRecord) float64 { return r.TotalOrders }},
		column{"customer_total_spend", func(r *FeaturedRecord) float64 { return r.TotalSpend }},
		column{"customer_days_active", func(r *FeaturedRecord) float64 { return float64(r.DaysActive) }},
		column{"customer_avg_order_value", func(r *FeaturedRecord) float64 { return r.AvgOrderValue }},

		column{"avg_items_per_order", func(r *FeaturedRecord) float64 { return r.AvgItemsPerOrder }},
		column{"returns_ratio", func(r *FeaturedRecord) float64 { return r.ReturnsRatio }},
	)
	return &Registry{columns: cols}
}

// Columns returns the feature column names in model order. The key columns
// (date, customer_id) and the target (net_amount) are not included.
func (r *Registry) Columns() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.name
	}
	return names
}

// Len returns the number of feature columns.
func (r *Registry) Len() int { return len(r.columns) }

// Vector returns rec's feature values in Columns order.
func (r *Registry) Vector(rec *FeaturedRecord) []float64 {
	v := make([]float64, len(r.columns))
	for i, c := range r.columns {
		v[i] = c.value(rec)
	}
	return v
}

// Values returns rec's feature values keyed by column name.
func (r *Registry) Values(rec *FeaturedRecord) map[string]float64 {
	m := make(map[string]float64, len(r.columns))
	for _, c := range r.columns {
		m[c.name] = c.value(rec)
	}
	return m
}

// Verify checks that names is the same set as Columns. Order is not
// significant; a persisted column list from an older run may be reordered.
func (r *Registry) Verify(names []string) error {
	want := make(map[string]bool, len(r.columns))
	for _, c := range r.columns {
		want[c.name] = true
	}
	got := make(map[string]bool, len(names))
	for _, n := range names {
		got[n] = true
	}

	var missing, extra []string
	for n := range want {
		if !got[n] {
			missing = append(missing, n)
		}
	}
	for n := range got {
		if !want[n] {
			extra = append(extra, n)
		}
	}
	if len(missing) == 0 && len(extra) == 0 && len(names) == len(r.columns) {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return fmt.Errorf("Registry.Verify: %w: missing [%s] unexpected [%s]",
		domain.ErrSchema, strings.Join(missing, ", "), strings.Join(extra, ", "))
}
