package aggregate

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

var (
	oct1 = civil.Date{Year: 2024, Month: 10, Day: 1}
	oct2 = civil.Date{Year: 2024, Month: 10, Day: 2}
)

func priced(customer, invoice string, date civil.Date, qty int64, price float64) domain.NormalizedLine {
	return domain.NormalizedLine{
		TransactionLine: domain.TransactionLine{
			InvoiceID:  invoice,
			ProductID:  "P-" + invoice,
			CustomerID: customer,
			Quantity:   qty,
			UnitPrice:  price,
			Currency:   "GBP",
			FileDate:   date,
		},
		Rate:           decimal.NullDecimal{Decimal: decimal.NewFromInt(1), Valid: true},
		PriceReporting: decimal.NullDecimal{Decimal: decimal.NewFromFloat(price), Valid: true},
	}
}

func TestAggregate_SingleCustomerDay(t *testing.T) {
	lines := []domain.NormalizedLine{
		priced("C1", "A", oct1, 2, 5.0),
		priced("C1", "A", oct1, -1, 5.0),
		priced("C1", "B", oct1, 3, 2.0),
	}

	got, err := Aggregate(lines)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, domain.DailyCustomerMetric{
		Date:          oct1,
		CustomerID:    "C1",
		Orders:        2,
		Items:         6,
		GrossAmount:   16.0,
		ReturnsAmount: -5.0,
		NetAmount:     11.0,
	}, got[0])
}

func TestAggregate_SortedByCustomerThenDate(t *testing.T) {
	lines := []domain.NormalizedLine{
		priced("C2", "X", oct2, 1, 1),
		priced("C1", "Y", oct2, 1, 1),
		priced("C2", "Z", oct1, 1, 1),
		priced("C1", "W", oct1, 1, 1),
	}

	got, err := Aggregate(lines)
	require.NoError(t, err)

	var keys []string
	for _, m := range got {
		keys = append(keys, m.Key().String())
	}
	assert.Equal(t, []string{"C1#2024-10-01", "C1#2024-10-02", "C2#2024-10-01", "C2#2024-10-02"}, keys)
	assert.NoError(t, ValidateUnique(got))
}

func TestAggregate_NetEqualsGrossPlusReturns(t *testing.T) {
	lines := []domain.NormalizedLine{
		priced("C1", "A", oct1, 4, 0.1),
		priced("C1", "A", oct1, -3, 0.1),
		priced("C1", "B", oct1, 7, 0.3),
		priced("C1", "C", oct1, -2, 1.7),
	}

	got, err := Aggregate(lines)
	require.NoError(t, err)

	m := got[0]
	assert.InDelta(t, m.GrossAmount+m.ReturnsAmount, m.NetAmount, 1e-9)
	assert.Equal(t, -1.2, m.NetAmount)
	assert.LessOrEqual(t, m.ReturnsAmount, 0.0)
	assert.Equal(t, int64(16), m.Items)
	assert.Equal(t, int64(3), m.Orders)
}

func TestAggregate_Failures(t *testing.T) {
	undefined := priced("C1", "A", oct1, 1, 1)
	undefined.PriceReporting = decimal.NullDecimal{}

	tests := []struct {
		name  string
		lines []domain.NormalizedLine
		want  error
	}{
		{name: "empty input", lines: nil, want: domain.ErrEmptyInput},
		{name: "undefined price", lines: []domain.NormalizedLine{priced("C1", "B", oct1, 1, 1), undefined}, want: domain.ErrUndefinedPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tt.lines)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "want %v, got %v", tt.want, err)
			assert.Nil(t, got)
		})
	}
}

func TestValidateUnique_Duplicate(t *testing.T) {
	metrics := []domain.DailyCustomerMetric{
		{Date: oct1, CustomerID: "C1", NetAmount: 1},
		{Date: oct2, CustomerID: "C1", NetAmount: 2},
		{Date: oct1, CustomerID: "C1", NetAmount: 3},
	}

	err := ValidateUnique(metrics)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateKey))
	assert.Contains(t, err.Error(), "C1#2024-10-01")
}

func TestSummarize(t *testing.T) {
	metrics := []domain.DailyCustomerMetric{
		{Date: oct2, CustomerID: "C1", Orders: 1, Items: 2, NetAmount: 10},
		{Date: oct1, CustomerID: "C2", Orders: 3, Items: 4, NetAmount: 30},
		{Date: oct2, CustomerID: "C2", Orders: 2, Items: 6, NetAmount: -4},
	}

	s := Summarize(metrics)

	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 2, s.Customers)
	assert.Equal(t, oct1, s.FirstDate)
	assert.Equal(t, oct2, s.LastDate)
	assert.Equal(t, 36.0, s.TotalNet)
	assert.Equal(t, 12.0, s.MeanDailySpend)
	assert.Equal(t, 10.0, s.MedianDailySpend)
	assert.Equal(t, 2.0, s.MeanOrders)
	assert.Equal(t, 4.0, s.MeanItems)

	assert.Equal(t, Summary{}, Summarize(nil))
}
