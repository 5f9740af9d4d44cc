package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount with scale 2. Every derived value
// (percentage accrual, subtraction results fed back into balances) is rounded
// half-up to two decimal places. Money never touches binary floats.
type Money struct {
	dec decimal.Decimal
}

func Zero() Money {
	return Money{}
}

// FromString parses a decimal string such as "12.34". Amounts with more than
// two decimal places are rejected.
func FromString(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if d.Exponent() < -2 {
		return Money{}, fmt.Errorf("invalid amount %q: more than two decimal places", raw)
	}
	return Money{dec: d}, nil
}

// MustParse is FromString for trusted literals (seeds, tests). It panics on
// malformed input.
func MustParse(raw string) Money {
	m, err := FromString(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(other Money) Money {
	return Money{dec: m.dec.Add(other.dec)}
}

// Sub returns m - other. The result may be negative; callers decide whether a
// deficit is an error.
func (m Money) Sub(other Money) Money {
	return Money{dec: m.dec.Sub(other.dec)}
}

// MulRate multiplies by a fractional rate (e.g. 0.05) and rounds the result
// half-up to two decimal places.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{dec: m.dec.Mul(rate).Round(2)}
}

// MulQty multiplies by an integer quantity. No rounding occurs because a
// scale-2 amount times an integer stays at scale 2.
func (m Money) MulQty(qty int) Money {
	return Money{dec: m.dec.Mul(decimal.NewFromInt(int64(qty)))}
}

func (m Money) Cmp(other Money) int {
	return m.dec.Cmp(other.dec)
}

func (m Money) Min(other Money) Money {
	if m.dec.Cmp(other.dec) <= 0 {
		return m
	}
	return other
}

func (m Money) IsZero() bool {
	return m.dec.IsZero()
}

func (m Money) IsNegative() bool {
	return m.dec.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.dec.IsPositive()
}

func (m Money) Equal(other Money) bool {
	return m.dec.Equal(other.dec)
}

func (m Money) String() string {
	return m.dec.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if raw == "" || raw == "null" {
		*m = Zero()
		return nil
	}
	parsed, err := FromString(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	*m = Money{dec: d}
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
