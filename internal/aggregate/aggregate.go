package aggregate

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// bucket accumulates one (date, customer_id) group.
type bucket struct {
	invoices map[string]struct{}
	items    int64
	gross    decimal.Decimal
	returns  decimal.Decimal
	net      decimal.Decimal
}

// Aggregate collapses priced line items into one DailyCustomerMetric per
// (date, customer_id), sorted by (customer_id, date).
//
// It is all-or-nothing: a single line without a reporting price fails the
// whole call with ErrUndefinedPrice.
func Aggregate(lines []domain.NormalizedLine) ([]domain.DailyCustomerMetric, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("Aggregate: %w", domain.ErrEmptyInput)
	}

	undefined := 0
	firstUndefined := -1
	for i, l := range lines {
		if !l.PriceReporting.Valid {
			undefined++
			if firstUndefined < 0 {
				firstUndefined = i
			}
		}
	}
	if undefined > 0 {
		l := lines[firstUndefined]
		return nil, fmt.Errorf("Aggregate: %w: %d lines, first is invoice %s (%s %s)",
			domain.ErrUndefinedPrice, undefined, l.InvoiceID, l.FileDate, l.Currency)
	}

	buckets := make(map[domain.MetricKey]*bucket)
	for _, l := range lines {
		k := domain.MetricKey{CustomerID: l.CustomerID, Date: l.FileDate}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{invoices: make(map[string]struct{})}
			buckets[k] = b
		}

		value := l.Value()
		b.invoices[l.InvoiceID] = struct{}{}
		b.items += abs(l.Quantity)
		b.net = b.net.Add(value)
		switch {
		case l.Quantity > 0:
			b.gross = b.gross.Add(value)
		case l.Quantity < 0:
			b.returns = b.returns.Add(value)
		}
	}

	out := make([]domain.DailyCustomerMetric, 0, len(buckets))
	for k, b := range buckets {
		out = append(out, domain.DailyCustomerMetric{
			Date:          k.Date,
			CustomerID:    k.CustomerID,
			Orders:        int64(len(b.invoices)),
			Items:         b.items,
			GrossAmount:   b.gross.InexactFloat64(),
			ReturnsAmount: b.returns.InexactFloat64(),
			NetAmount:     b.net.InexactFloat64(),
		})
	}
	slices.SortFunc(out, domain.CompareKeys)
	return out, nil
}

// ValidateUnique fails with ErrDuplicateKey if two rows share (date, customer_id).
func ValidateUnique(metrics []domain.DailyCustomerMetric) error {
	seen := make(map[domain.MetricKey]int, len(metrics))
	for i, m := range metrics {
		if j, ok := seen[m.Key()]; ok {
			return fmt.Errorf("ValidateUnique: %w: %s at rows %d and %d", domain.ErrDuplicateKey, m.Key(), j, i)
		}
		seen[m.Key()] = i
	}
	return nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
