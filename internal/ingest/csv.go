package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

var transactionColumns = []string{
	"invoice_id", "product_id", "description", "quantity",
	"timestamp", "unit_price", "currency", "customer_id",
}

var rateColumns = []string{"date", "currency", "rate_to_gbp"}

type header map[string]int

func readHeader(r *csv.Reader, required []string) (header, error) {
	row, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", domain.ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(row))
	for i, name := range row {
		h[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrSchema, name)
		}
	}
	return h, nil
}

func (h header) get(row []string, name string) string {
	return strings.TrimSpace(row[h[name]])
}

func (h header) nullable(row []string, name string) *string {
	v := h.get(row, name)
	if v == "" {
		return nil
	}
	return &v
}

// ParseTransactions reads one daily transaction file. Empty description,
// unit_price and customer_id cells become nil.
func ParseTransactions(r io.Reader, fileDate civil.Date) ([]domain.RawTransaction, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	h, err := readHeader(cr, transactionColumns)
	if err != nil {
		return nil, fmt.Errorf("ParseTransactions: %w", err)
	}

	var out []domain.RawTransaction
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseTransactions: line %d: %w", line, err)
		}

		qty, err := parseQuantity(h.get(row, "quantity"))
		if err != nil {
			return nil, fmt.Errorf("ParseTransactions: line %d: %w: quantity: %v", line, domain.ErrSchema, err)
		}
		var price *float64
		if s := h.get(row, "unit_price"); s != "" {
			p, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("ParseTransactions: line %d: %w: unit_price: %v", line, domain.ErrSchema, err)
			}
			price = &p
		}

		out = append(out, domain.RawTransaction{
			InvoiceID:   h.get(row, "invoice_id"),
			ProductID:   h.get(row, "product_id"),
			Description: h.nullable(row, "description"),
			Quantity:    qty,
			Timestamp:   h.get(row, "timestamp"),
			UnitPrice:   price,
			Currency:    h.get(row, "currency"),
			CustomerID:  h.nullable(row, "customer_id"),
			FileDate:    fileDate,
		})
	}
	return out, nil
}

// parseQuantity accepts integers and integral floats such as "3.0".
func parseQuantity(s string) (int64, error) {
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("non-integral quantity %q", s)
	}
	return int64(f), nil
}

// ParseRates reads the FX rate table.
func ParseRates(r io.Reader) ([]domain.FxRate, error) {
	cr := csv.NewReader(r)
	h, err := readHeader(cr, rateColumns)
	if err != nil {
		return nil, fmt.Errorf("ParseRates: %w", err)
	}

	var out []domain.FxRate
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseRates: line %d: %w", line, err)
		}
		d, err := parseDate(h.get(row, "date"))
		if err != nil {
			return nil, fmt.Errorf("ParseRates: line %d: %w: date: %v", line, domain.ErrSchema, err)
		}
		rate, err := strconv.ParseFloat(h.get(row, "rate_to_gbp"), 64)
		if err != nil {
			return nil, fmt.Errorf("ParseRates: line %d: %w: rate_to_gbp: %v", line, domain.ErrSchema, err)
		}
		out = append(out, domain.FxRate{Date: d, Currency: h.get(row, "currency"), RateToGBP: rate})
	}
	return out, nil
}

// parseDate accepts YYYY-MM-DD optionally followed by a time part.
func parseDate(s string) (civil.Date, error) {
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	return civil.ParseDate(s)
}
