/*
Package money provides fixed-point monetary values for the cash engine.

PURPOSE:
  Every balance, movement, and payment amount in the system is a Money
  value: an integer count of minor units (cents). Repeated addition and
  subtraction over a shift's ledger must never drift, so arithmetic stays
  in int64 the whole way through. decimal.Decimal appears only at the
  boundaries - parsing user input and formatting output with two
  fractional digits.

DESIGN PRINCIPLES:
  1. Precision: int64 minor units internally; no float64 ever touches a balance
  2. Boundaries: shopspring/decimal for parse/format/JSON only
  3. Immutability: Money is a value type; operations return new values

USAGE:
  opening, _ := money.Parse("100.00")
  after := opening.Add(money.FromMinorUnits(5000)) // +50.00
  fmt.Println(after) // "150.00"

SEE ALSO:
  - register/balance.go: Balance calculation built on Money
*/
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount of currency in minor units (cents).
// The zero value is zero money.
type Money struct {
	units int64
}

// Zero is the zero amount.
var Zero = Money{}

// FromMinorUnits builds a Money from a cent count.
func FromMinorUnits(units int64) Money {
	return Money{units: units}
}

// FromDecimal converts a decimal amount to Money, rounding half-up to
// two fractional digits.
func FromDecimal(d decimal.Decimal) Money {
	return Money{units: d.Shift(2).Round(0).IntPart()}
}

// Parse reads a decimal string like "100.00" into Money.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for literals in tests and fixtures; panics on error.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MinorUnits returns the cent count.
func (m Money) MinorUnits() int64 { return m.units }

// Decimal returns the amount as a two-digit decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.units, -2)
}

func (m Money) Add(o Money) Money { return Money{units: m.units + o.units} }
func (m Money) Sub(o Money) Money { return Money{units: m.units - o.units} }
func (m Money) Neg() Money        { return Money{units: -m.units} }

func (m Money) IsZero() bool     { return m.units == 0 }
func (m Money) IsPositive() bool { return m.units > 0 }
func (m Money) IsNegative() bool { return m.units < 0 }

func (m Money) GreaterThan(o Money) bool { return m.units > o.units }
func (m Money) LessThan(o Money) bool    { return m.units < o.units }

// String formats with exactly two fractional digits, e.g. "-10.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes as a quoted decimal string. Encoding as a JSON
// number would push clients toward float parsing.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds a slice of amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
