// Package money converts between the decimal string amounts used on the wire
// and the int64 minor units (cents) used for all stored balances.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Exponent is the fixed fractional precision for all amounts.
const Exponent = 2

var (
	// ErrMalformed indicates the input is not a parseable decimal number.
	ErrMalformed = errors.New("malformed amount")

	// ErrPrecision indicates the input carries more fractional digits than
	// the fixed precision allows. Amounts are never silently rounded.
	ErrPrecision = errors.New("amount exceeds supported precision")

	// ErrNegative indicates a negative amount.
	ErrNegative = errors.New("amount is negative")

	// ErrRange indicates the amount does not fit in minor units.
	ErrRange = errors.New("amount out of range")
)

// Parse converts a decimal string such as "30.50" into minor units (3050).
// Zero is accepted; callers that require a strictly positive amount check the
// returned value themselves.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrMalformed
	}
	if d.IsNegative() {
		return 0, ErrNegative
	}
	if d.Exponent() < -Exponent && !d.Equal(d.Truncate(Exponent)) {
		return 0, ErrPrecision
	}
	minor := d.Shift(Exponent)
	if !minor.IsInteger() {
		return 0, ErrPrecision
	}
	if !minor.BigInt().IsInt64() {
		return 0, ErrRange
	}
	return minor.BigInt().Int64(), nil
}

// Format renders minor units as a fixed two-decimal string: 7000 -> "70.00".
func Format(minor int64) string {
	return decimal.New(minor, -Exponent).StringFixed(Exponent)
}
