// Package money represents currency values as integer minor units (paise).
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency value in minor units. 100 == ₹1.00.
type Amount int64

const minorDigits = 2

var (
	// ErrInvalid is returned for values that cannot be parsed as a currency amount.
	ErrInvalid = errors.New("money: invalid amount")
	// ErrOverflow is returned when a value does not fit in an Amount. It matches ErrInvalid.
	ErrOverflow = fmt.Errorf("%w: out of range", ErrInvalid)
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal rounds d to two decimal places (half away from zero) and converts it to minor units.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Round(minorDigits).Shift(minorDigits)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrOverflow
	}
	return Amount(minor.IntPart()), nil
}

// Add returns a+b, or ErrOverflow when the sum leaves the int64 range.
func Add(a, b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Parse reads a decimal string such as "12.5" or "100".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalid)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromDecimal(d)
}

// FromMajor converts whole rupees to an Amount.
func FromMajor(units int64) Amount {
	return Amount(units * 100)
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -minorDigits)
}

// String formats the amount with exactly two decimals.
func (a Amount) String() string {
	return a.Decimal().StringFixed(minorDigits)
}

// Positive reports whether the amount is strictly greater than zero.
func (a Amount) Positive() bool {
	return a > 0
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
