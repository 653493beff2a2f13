// Package money implements the fixed-point amount used across the ledger.
//
// A Money value counts cents in an int64, so addition, subtraction and sums
// are exact no matter how many values are combined. Decimal parsing and
// formatting go through shopspring/decimal.
package money

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits a Money value carries.
const Scale = 2

var (
	// Zero is the zero amount.
	Zero = Money{}

	// Epsilon is the tolerance used wherever two amounts only need to be
	// effectively equal: split-sum validation and creditor/debtor
	// classification share this one constant.
	Epsilon = Money{cents: 1}

	hundred = decimal.NewFromInt(100)
)

// Money is a signed amount with two fractional digits.
type Money struct {
	cents int64
}

// FromCents builds a Money value from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{cents: cents}
}

// FromDecimal rounds d half away from zero to cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{cents: d.Round(Scale).Shift(Scale).IntPart()}
}

// FromFloat converts a binary float, rounding to the nearest cent.
// Prefer Parse for user input; this exists for callers that already hold
// a float64 (JSON numbers decoded elsewhere, metrics).
func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse reads a decimal string such as "33.33" or "-5".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for constants and tests; it panics on bad input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Sum adds all values exactly.
func Sum(values ...Money) Money {
	var total int64
	for _, v := range values {
		total += v.cents
	}
	return Money{cents: total}
}

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 { return m.cents }

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal { return decimal.New(m.cents, -Scale) }

// Float64 is lossy and meant for metrics and logs only.
func (m Money) Float64() float64 { return m.Decimal().InexactFloat64() }

func (m Money) Add(o Money) Money { return Money{cents: m.cents + o.cents} }
func (m Money) Sub(o Money) Money { return Money{cents: m.cents - o.cents} }
func (m Money) Neg() Money        { return Money{cents: -m.cents} }

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.cents < 0 {
		return m.Neg()
	}
	return m
}

// Cmp returns -1, 0 or +1 depending on whether m is less than, equal to or
// greater than o. The comparison is exact.
func (m Money) Cmp(o Money) int {
	switch {
	case m.cents < o.cents:
		return -1
	case m.cents > o.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) Equal(o Money) bool       { return m.cents == o.cents }
func (m Money) LessThan(o Money) bool    { return m.cents < o.cents }
func (m Money) GreaterThan(o Money) bool { return m.cents > o.cents }
func (m Money) IsPositive() bool         { return m.cents > 0 }
func (m Money) IsNegative() bool         { return m.cents < 0 }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if o.cents < m.cents {
		return o
	}
	return m
}

// IsZero reports whether |m| <= tolerance.
func (m Money) IsZero(tolerance Money) bool {
	return m.Abs().cents <= tolerance.Abs().cents
}

// Within reports whether |m - o| <= tolerance.
func (m Money) Within(o Money, tolerance Money) bool {
	return m.Sub(o).IsZero(tolerance)
}

// Allocate splits m into n parts that differ by at most one cent. Leftover
// cents go to the first parts, so the parts always sum back to m.
func (m Money) Allocate(n int) []Money {
	if n <= 0 {
		return nil
	}
	base := m.cents / int64(n)
	rem := m.cents % int64(n)
	step := int64(1)
	if rem < 0 {
		rem, step = -rem, -1
	}

	parts := make([]Money, n)
	for i := range parts {
		parts[i] = Money{cents: base}
		if int64(i) < rem {
			parts[i].cents += step
		}
	}
	return parts
}

// MulPercent returns m * pct / 100 rounded half away from zero to cents.
func (m Money) MulPercent(pct decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(pct).Div(hundred))
}

// Percent is MulPercent for a share given in basis points (1/100 of a percent).
func (m Money) Percent(basisPoints int64) Money {
	return m.MulPercent(decimal.New(basisPoints, -2))
}

// String formats the amount with exactly two decimals, e.g. "-12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	parsed, err := Parse(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount as integer cents.
func (m Money) Value() (driver.Value, error) {
	return m.cents, nil
}

// Scan reads integer cents, or a decimal string from NUMERIC columns.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Zero
	case int64:
		*m = Money{cents: v}
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*m = parsed
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*m = parsed
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}
