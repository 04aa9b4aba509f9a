// Package core provides money parsing and handling utilities.
//
// Amounts are decimals with currency semantics: every value entering the
// ledger is rounded half-up to two decimal places.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a currency amount backed by an arbitrary-precision decimal.
// The zero value is a valid zero amount.
type Money struct {
	Amount decimal.Decimal
}

// NewMoney wraps a decimal rounded to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{Amount: d.Round(2)}
}

// MustMoney is a convenience for fixtures and tests.
func MustMoney(s string) Money {
	return NewMoney(decimal.RequireFromString(s))
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Only strictly positive amounts are
// accepted.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
//	ParseMoney("-1")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := NewMoney(d)
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Rounded returns the amount at cent precision.
func (m Money) Rounded() Money {
	return NewMoney(m.Amount)
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount)}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}

func (m Money) Cmp(other Money) int {
	return m.Amount.Cmp(other.Amount)
}

func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs()}
}

// Float64 returns the value for ratios and display; use Money for arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Amount.Float64()
	return f
}

// Fixed formats with exactly two decimals ("12.50").
func (m Money) Fixed() string {
	return m.Amount.StringFixed(2)
}

// String formats without trailing zeros ("12.5", "400").
func (m Money) String() string {
	return m.Amount.String()
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Amount.String()), nil
}

// UnmarshalJSON accepts numbers and quoted numbers, rounded to cents.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Money{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = NewMoney(d)
	return nil
}
