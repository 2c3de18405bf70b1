package currency

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

type rateKey struct {
	date     civil.Date
	currency string
}

// RateTable is an immutable FX lookup keyed by (date, currency).
type RateTable struct {
	reporting string
	rates     map[rateKey]decimal.Decimal
}

// NewRateTable indexes rates. An empty or malformed table is a configuration
// error, not a per-row condition.
func NewRateTable(rates []domain.FxRate, reporting string) (*RateTable, error) {
	if len(rates) == 0 {
		return nil, fmt.Errorf("NewRateTable: %w: rate table is empty", domain.ErrConfig)
	}
	if reporting == "" {
		return nil, fmt.Errorf("NewRateTable: %w: reporting currency not set", domain.ErrConfig)
	}

	t := &RateTable{
		reporting: reporting,
		rates:     make(map[rateKey]decimal.Decimal, len(rates)),
	}
	for i, r := range rates {
		cur := strings.ToUpper(strings.TrimSpace(r.Currency))
		switch {
		case !r.Date.IsValid():
			return nil, fmt.Errorf("NewRateTable: %w: row %d has no valid date", domain.ErrConfig, i)
		case cur == "":
			return nil, fmt.Errorf("NewRateTable: %w: row %d has no currency", domain.ErrConfig, i)
		case r.RateToGBP <= 0:
			return nil, fmt.Errorf("NewRateTable: %w: row %d (%s %s) has non-positive rate %v",
				domain.ErrConfig, i, r.Date, cur, r.RateToGBP)
		}

		k := rateKey{date: r.Date, currency: cur}
		rate := decimal.NewFromFloat(r.RateToGBP)
		if prev, ok := t.rates[k]; ok && !prev.Equal(rate) {
			return nil, fmt.Errorf("NewRateTable: %w: conflicting rates for %s %s: %s vs %s",
				domain.ErrConfig, r.Date, cur, prev, rate)
		}
		t.rates[k] = rate
	}
	return t, nil
}

// Lookup returns the rate for (date, currency). The reporting currency always
// resolves to 1 when the table has no row for it.
func (t *RateTable) Lookup(date civil.Date, currency string) (decimal.Decimal, bool) {
	if r, ok := t.rates[rateKey{date: date, currency: currency}]; ok {
		return r, true
	}
	if currency == t.reporting {
		return decimal.NewFromInt(1), true
	}
	return decimal.Decimal{}, false
}

// Reporting returns the reporting currency code.
func (t *RateTable) Reporting() string { return t.reporting }

// Len returns the number of indexed (date, currency) rates.
func (t *RateTable) Len() int { return len(t.rates) }
