package domain

import (
	"github.com/shopspring/decimal"
)

// Money is a monetary amount kept at two decimal places. It is stored as a
// decimal column and rendered in JSON as a fixed point string ("11.00").
type Money struct {
	decimal.Decimal
}

// NewMoney rounds d half away from zero to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

// ParseMoney parses a decimal string such as "5.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

// MustMoney is ParseMoney for constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// NullMoney is an optional Money, NULL in the database and null in JSON.
type NullMoney struct {
	decimal.NullDecimal
}

func SomeMoney(s string) NullMoney {
	return NullMoney{decimal.NewNullDecimal(MustMoney(s).Decimal)}
}

func (m NullMoney) Money() (Money, bool) {
	if !m.Valid {
		return Money{}, false
	}
	return NewMoney(m.Decimal), true
}

func (m NullMoney) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return NewMoney(m.Decimal).MarshalJSON()
}
