// Package money provides the fixed-point Amount used for every balance and
// transfer in the ledger.
//
// Amounts carry exactly two fractional digits. They are parsed from decimal
// strings, never from binary floats, and persisted as int64 minor units.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits an Amount carries.
const Scale = 2

// ErrInvalid is returned when a string is not a representable Amount.
var ErrInvalid = errors.New("invalid amount")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// Amount is a fixed-point decimal value with Scale fractional digits.
// The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Amount{}

// Parse converts a decimal string such as "30", "30.5" or "30.00" to an
// Amount. More than Scale significant fractional digits, non-numeric input
// and values outside the int64 minor-unit range are rejected with ErrInvalid.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if !d.Equal(d.Truncate(Scale)) {
		return Amount{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalid, s, Scale)
	}
	cents := d.Shift(Scale)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Amount{}, fmt.Errorf("%w: %q out of range", ErrInvalid, s)
	}
	return Amount{d: d.Truncate(Scale)}, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromCents builds an Amount from minor units.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -Scale)}
}

// Cents returns the Amount in minor units.
func (a Amount) Cents() int64 {
	return a.d.Shift(Scale).IntPart()
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

// Cmp returns -1, 0 or +1 depending on whether a is less than, equal to or
// greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal reports whether a and b represent the same value.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.d.LessThan(b.d)
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool {
	return a.d.IsPositive()
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// String formats the Amount with exactly Scale fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the Amount as a JSON string so no consumer ever
// round-trips it through a float.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both "30.00" and 30.00. Bare JSON numbers are parsed
// from their literal text, not via float64.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return fmt.Errorf("%w: null", ErrInvalid)
	}
	s = strings.Trim(s, `"`)
	return a.UnmarshalText([]byte(s))
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
