package currency

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// MissingRate identifies a (date, currency) pair with no rate.
type MissingRate struct {
	Date     civil.Date
	Currency string
}

// Report is the data-quality summary of one Normalize call.
type Report struct {
	Rows        int
	ByCurrency  map[string]int
	MissingRows int
	Missing     map[MissingRate]int

	failOnMissing bool
}

// Err returns ErrMissingRate when lines were left without a reporting price
// and the normalizer is configured to fail on them.
func (r Report) Err() error {
	if r.MissingRows == 0 || !r.failOnMissing {
		return nil
	}
	return fmt.Errorf("%w: %d rows across %s", domain.ErrMissingRate, r.MissingRows, r.missingSummary())
}

func (r Report) missingSummary() string {
	keys := make([]MissingRate, 0, len(r.Missing))
	for k := range r.Missing {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date.Before(keys[j].Date)
		}
		return keys[i].Currency < keys[j].Currency
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s/%s=%d", k.Date, k.Currency, r.Missing[k]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Normalizer prices line items in the reporting currency.
type Normalizer struct {
	table         *RateTable
	failOnMissing bool
}

func NewNormalizer(table *RateTable, failOnMissing bool) *Normalizer {
	return &Normalizer{table: table, failOnMissing: failOnMissing}
}

// Normalize joins every line to the rate for (file_date, currency) and sets
// PriceReporting = UnitPrice × rate. Lines with no rate keep an invalid
// PriceReporting and are counted in the report. The input is not modified.
func (n *Normalizer) Normalize(lines []domain.TransactionLine) ([]domain.NormalizedLine, Report) {
	rep := Report{
		Rows:          len(lines),
		ByCurrency:    make(map[string]int),
		Missing:       make(map[MissingRate]int),
		failOnMissing: n.failOnMissing,
	}

	out := make([]domain.NormalizedLine, len(lines))
	for i, l := range lines {
		rep.ByCurrency[l.Currency]++
		out[i].TransactionLine = l

		rate, ok := n.table.Lookup(l.FileDate, l.Currency)
		if !ok {
			rep.MissingRows++
			rep.Missing[MissingRate{Date: l.FileDate, Currency: l.Currency}]++
			continue
		}
		out[i].Rate = decimal.NullDecimal{Decimal: rate, Valid: true}
		out[i].PriceReporting = decimal.NullDecimal{Decimal: decimal.NewFromFloat(l.UnitPrice).Mul(rate), Valid: true}
	}
	return out, rep
}

// Resolved returns the lines that carry a reporting price. It is only used
// when the normalizer is configured not to fail; the excluded rows remain
// visible through Report.MissingRows.
func Resolved(lines []domain.NormalizedLine) []domain.NormalizedLine {
	out := make([]domain.NormalizedLine, 0, len(lines))
	for _, l := range lines {
		if l.PriceReporting.Valid {
			out = append(out, l)
		}
	}
	return out
}
