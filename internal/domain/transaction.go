package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawTransaction is one line of a daily transaction file as read from CSV.
// Nullable columns are pointers; nothing has been validated yet.
type RawTransaction struct {
	InvoiceID   string
	ProductID   string
	Description *string
	Quantity    int64
	Timestamp   string
	UnitPrice   *float64
	Currency    string
	CustomerID  *string
	FileDate    civil.Date // from the file name, e.g. data/2024-10-01.csv
}

// TransactionLine is a cleaned line item. Quantity is signed (negative = return),
// UnitPrice is in the original currency.
type TransactionLine struct {
	InvoiceID   string     `validate:"required"`
	ProductID   string     `validate:"required"`
	CustomerID  string     `validate:"required"`
	Description string     `validate:"required"`
	Timestamp   time.Time  `validate:"required"`
	Quantity    int64      `validate:"ne=0"`
	UnitPrice   float64    `validate:"gt=0"`
	Currency    string     `validate:"required,len=3,uppercase"`
	FileDate    civil.Date `validate:"-"`
}

// NormalizedLine is a TransactionLine priced in the reporting currency.
// PriceReporting is invalid when no rate could be resolved for (FileDate, Currency).
type NormalizedLine struct {
	TransactionLine
	Rate           decimal.NullDecimal
	PriceReporting decimal.NullDecimal
}

// Value returns quantity × price_reporting. It must only be called on lines with a
// valid PriceReporting.
func (l NormalizedLine) Value() decimal.Decimal {
	return l.PriceReporting.Decimal.Mul(decimal.NewFromInt(l.Quantity))
}

// FxRate is the conversion rate from Currency to the reporting currency on Date.
type FxRate struct {
	Date      civil.Date
	Currency  string
	RateToGBP float64
}
