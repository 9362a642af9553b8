package pos

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point currency with two decimal places
// =============================================================================

// MoneyPlaces is the number of fractional digits every amount is rounded to.
const MoneyPlaces = 2

// Money is a currency amount. The zero value is 0.00.
//
// Amounts are never compared or persisted as binary floats: equality goes
// through decimal comparison and the wire/storage form is a fixed 2dp string.
type Money struct {
	d decimal.Decimal
}

// NewMoney rounds d to two places.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(MoneyPlaces)}
}

func MoneyFromInt(v int64) Money {
	return Money{d: decimal.NewFromInt(v)}
}

// ParseMoney parses a decimal string such as "12.60".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewMoney(d), nil
}

// MustMoney is ParseMoney for constants and tests. It panics on bad input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money           { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money           { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money                  { return Money{d: m.d.Neg()} }
func (m Money) Mul(f decimal.Decimal) Money { return NewMoney(m.d.Mul(f)) }
func (m Money) IsZero() bool                { return m.d.IsZero() }
func (m Money) IsNegative() bool            { return m.d.IsNegative() }
func (m Money) IsPositive() bool            { return m.d.IsPositive() }
func (m Money) Equal(o Money) bool          { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool    { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool       { return m.d.LessThan(o.d) }

func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}

// String renders the amount with exactly two decimals.
func (m Money) String() string { return m.d.StringFixed(MoneyPlaces) }

// =============================================================================
// ENCODING
// =============================================================================

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount as fixed 2dp text.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan reads amounts written by Value.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Money{}
		return nil
	case string:
		return m.UnmarshalJSON([]byte(v))
	case []byte:
		return m.UnmarshalJSON(v)
	case int64:
		*m = MoneyFromInt(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
}
