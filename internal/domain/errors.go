package domain

import "errors"

// Error taxonomy shared by every stage of the pipeline. Callers wrap these with
// context and match them with errors.Is.
var (
	// ErrSchema reports a missing required column or a value of the wrong type.
	ErrSchema = errors.New("schema violation")

	// ErrDuplicateKey reports two metric rows with the same (date, customer_id).
	ErrDuplicateKey = errors.New("duplicate (date, customer_id) key")

	// ErrMissingRate reports non-reporting-currency lines with no FX rate.
	ErrMissingRate = errors.New("undefined currency rate")

	// ErrUndefinedPrice reports a line reaching aggregation without a reporting price.
	ErrUndefinedPrice = errors.New("undefined reporting price")

	// ErrEmptyInput reports an empty table where at least one row is required.
	ErrEmptyInput = errors.New("empty input table")

	// ErrConfig reports an invalid configuration or rate table.
	ErrConfig = errors.New("configuration error")

	// ErrNoHistory reports that no metrics exist for a customer before a date.
	ErrNoHistory = errors.New("no historical data")
)
