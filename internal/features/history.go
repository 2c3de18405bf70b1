package features

import (
	"math"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// customerHistory is the per-customer state both entry points feed rows
// into. The ring only keeps as many rows as the deepest window or lag.
type customerHistory struct {
	cfg Config

	ring  []domain.DailyCustomerMetric
	next  int
	count int

	first       civil.Date
	seen        bool
	totalOrders int64
	totalSpend  float64
}

func newCustomerHistory(cfg Config) *customerHistory {
	return &customerHistory{
		cfg:  cfg,
		ring: make([]domain.DailyCustomerMetric, cfg.depth()),
	}
}

// recent returns the k-th most recent pushed row, k >= 1.
func (h *customerHistory) recent(k int) (domain.DailyCustomerMetric, bool) {
	if k > h.count {
		return domain.DailyCustomerMetric{}, false
	}
	n := len(h.ring)
	return h.ring[(h.next-k+n)%n], true
}

func (h *customerHistory) push(m domain.DailyCustomerMetric) {
	h.ring[h.next] = m
	h.next = (h.next + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}
	if !h.seen {
		h.first = m.Date
		h.seen = true
	}
	h.totalOrders += m.Orders
	h.totalSpend += m.NetAmount
}

// featurize derives the features for row m from the rows pushed so far.
// It reports whether returns_ratio had to be clipped.
func (h *customerHistory) featurize(m domain.DailyCustomerMetric) (FeaturedRecord, bool) {
	rec := FeaturedRecord{DailyCustomerMetric: m}
	setCalendar(&rec, m.Date)
	h.setRolling(&rec)

	rec.Lags = make([]LagValues, len(h.cfg.Lags))
	for i, lag := range h.cfg.Lags {
		if prev, ok := h.recent(lag); ok {
			rec.Lags[i] = LagValues{Net: prev.NetAmount, Orders: prev.Orders, Items: prev.Items}
		}
	}

	if h.seen {
		rec.TotalOrders = float64(h.totalOrders)
		rec.TotalSpend = h.totalSpend
		rec.DaysActive = m.Date.DaysSince(h.first)
		rec.AvgOrderValue = h.totalSpend / float64(max(h.totalOrders, 1))
	}

	rec.AvgItemsPerOrder = float64(m.Items) / float64(max(m.Orders, 1))
	ratio := m.ReturnsAmount / math.Max(m.GrossAmount, 0.01)
	clipped := ratio > 0
	if clipped {
		ratio = 0
	}
	rec.ReturnsRatio = ratio
	return rec, clipped
}

func (h *customerHistory) setRolling(rec *FeaturedRecord) {
	n := min(h.cfg.Window, h.count)
	if n == 0 {
		return
	}

	var sum, sumOrders float64
	maxNet := math.Inf(-1)
	// oldest first so the summation order is fixed
	for k := n; k >= 1; k-- {
		prev, _ := h.recent(k)
		sum += prev.NetAmount
		sumOrders += float64(prev.Orders)
		maxNet = math.Max(maxNet, prev.NetAmount)
	}
	mean := sum / float64(n)

	var std float64
	if n > 1 {
		var ss float64
		for k := n; k >= 1; k-- {
			prev, _ := h.recent(k)
			d := prev.NetAmount - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(n-1))
	}

	rec.RollingMeanNet = mean
	rec.RollingStdNet = std
	rec.RollingMaxNet = maxNet
	rec.RollingSumOrders = sumOrders
}

func setCalendar(rec *FeaturedRecord, d civil.Date) {
	wd := d.In(time.UTC).Weekday()
	rec.DayOfWeek = (int(wd) + 6) % 7
	rec.DayOfMonth = d.Day
	if wd == time.Saturday || wd == time.Sunday {
		rec.IsWeekend = 1
	}
}
