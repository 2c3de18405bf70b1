// Package preprocess turns raw CSV rows into validated transaction lines.
package preprocess

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
)

// UnknownDescription replaces a missing description.
const UnknownDescription = "Unknown"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Report counts rows removed or repaired per reason.
type Report struct {
	Input             int
	Duplicates        int
	MissingCustomer   int
	ImputedPrice      int
	UnimputablePrice  int
	FilledDescription int
	InvalidCurrency   int
	InvalidPrice      int
	InvalidTimestamp  int
	InvalidLine       int
	Output            int
}

// Dropped returns the number of input rows that did not survive.
func (r Report) Dropped() int {
	return r.Input - r.Output
}

// Cleaner applies the cleaning rules in a fixed order: deduplicate, drop
// rows without a customer, impute prices, fill descriptions, validate.
type Cleaner struct {
	allowed  map[string]bool
	validate *validator.Validate
}

// NewCleaner returns a Cleaner accepting only the given currencies.
func NewCleaner(allowedCurrencies []string) *Cleaner {
	allowed := make(map[string]bool, len(allowedCurrencies))
	for _, c := range allowedCurrencies {
		allowed[c] = true
	}
	return &Cleaner{
		allowed:  allowed,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Clean returns the surviving lines in input order and what happened to the
// rest. It fails only when nothing survives.
func (c *Cleaner) Clean(ctx context.Context, raw []domain.RawTransaction) ([]domain.TransactionLine, Report, error) {
	rep := Report{Input: len(raw)}

	rows := dedup(raw)
	rep.Duplicates = len(raw) - len(rows)

	rows = slices.DeleteFunc(rows, func(r domain.RawTransaction) bool {
		return r.CustomerID == nil || *r.CustomerID == ""
	})
	rep.MissingCustomer = len(raw) - rep.Duplicates - len(rows)

	rows, rep.ImputedPrice, rep.UnimputablePrice = imputePrices(rows)

	lines := make([]domain.TransactionLine, 0, len(rows))
	for _, r := range rows {
		desc := UnknownDescription
		filled := r.Description == nil || *r.Description == ""
		if !filled {
			desc = *r.Description
		}

		if !c.allowed[r.Currency] {
			rep.InvalidCurrency++
			continue
		}
		if *r.UnitPrice <= 0 {
			rep.InvalidPrice++
			continue
		}
		ts, ok := parseTimestamp(r.Timestamp)
		if !ok {
			rep.InvalidTimestamp++
			continue
		}

		line := domain.TransactionLine{
			InvoiceID:   r.InvoiceID,
			ProductID:   r.ProductID,
			CustomerID:  *r.CustomerID,
			Description: desc,
			Timestamp:   ts,
			Quantity:    r.Quantity,
			UnitPrice:   *r.UnitPrice,
			Currency:    r.Currency,
			FileDate:    r.FileDate,
		}
		if err := c.validate.Struct(line); err != nil {
			rep.InvalidLine++
			continue
		}
		if filled {
			rep.FilledDescription++
		}
		lines = append(lines, line)
	}
	rep.Output = len(lines)

	log := logger.FromContext(ctx)
	log.Info().
		Int("input", rep.Input).
		Int("duplicates", rep.Duplicates).
		Int("missing_customer", rep.MissingCustomer).
		Int("imputed_price", rep.ImputedPrice).
		Int("unimputable_price", rep.UnimputablePrice).
		Int("filled_description", rep.FilledDescription).
		Int("invalid_currency", rep.InvalidCurrency).
		Int("invalid_price", rep.InvalidPrice).
		Int("invalid_timestamp", rep.InvalidTimestamp).
		Int("invalid_line", rep.InvalidLine).
		Int("output", rep.Output).
		Msg("preprocessed transactions")

	if len(lines) == 0 {
		return nil, rep, fmt.Errorf("Clean: %w: no valid transaction lines", domain.ErrEmptyInput)
	}
	return lines, rep, nil
}

type dedupKey struct {
	invoice, product, timestamp string
	quantity                    int64
	price                       string
}

// dedup keeps the first of rows sharing (invoice, product, timestamp,
// quantity, unit_price); missing prices compare equal.
func dedup(raw []domain.RawTransaction) []domain.RawTransaction {
	seen := make(map[dedupKey]bool, len(raw))
	out := make([]domain.RawTransaction, 0, len(raw))
	for _, r := range raw {
		k := dedupKey{invoice: r.InvoiceID, product: r.ProductID, timestamp: r.Timestamp, quantity: r.Quantity, price: "NaN"}
		if r.UnitPrice != nil {
			k.price = strconv.FormatFloat(*r.UnitPrice, 'g', -1, 64)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// imputePrices fills missing unit prices with the median of the same
// product, currency and file date, falling back to the product median.
// Medians only use prices present in the input. Rows that cannot be
// imputed are dropped.
func imputePrices(rows []domain.RawTransaction) ([]domain.RawTransaction, int, int) {
	type groupKey struct{ product, currency, date string }
	byGroup := make(map[groupKey][]float64)
	byProduct := make(map[string][]float64)
	for _, r := range rows {
		if r.UnitPrice == nil {
			continue
		}
		k := groupKey{r.ProductID, r.Currency, r.FileDate.String()}
		byGroup[k] = append(byGroup[k], *r.UnitPrice)
		byProduct[r.ProductID] = append(byProduct[r.ProductID], *r.UnitPrice)
	}

	var imputed, dropped int
	out := rows[:0]
	for _, r := range rows {
		if r.UnitPrice == nil {
			prices := byGroup[groupKey{r.ProductID, r.Currency, r.FileDate.String()}]
			if len(prices) == 0 {
				prices = byProduct[r.ProductID]
			}
			if len(prices) == 0 {
				dropped++
				continue
			}
			m := Median(prices)
			r.UnitPrice = &m
			imputed++
		}
		out = append(out, r)
	}
	return out, imputed, dropped
}

// Median returns the median of xs, averaging the middle pair for an even
// count. xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
