// Package core provides the domain types shared by every layer.
//
// This file contains the Money type: a two-decimal currency amount backed by
// shopspring/decimal, plus parsing helpers for user-entered amounts.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is a currency amount with two decimal places.
// The zero value is a valid zero amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney rounds d half-up to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MoneyFromInt builds an amount from whole currency units.
func MoneyFromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// MustParseMoney parses s and panics on error. Intended for tests and constants.
func MustParseMoney(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid money literal %q: %v", s, err))
	}
	return m
}

// ParseAmount converts a user-entered decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding to cents. Negative values and malformed input are rejected;
// zero is accepted (budget allocations may be zero).
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35 (half-up)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Zero, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 {
		return Zero, ErrInvalidAmount
	}
	digits := 0
	for _, r := range s {
		if r == '.' {
			continue
		}
		if !unicode.IsDigit(r) {
			return Zero, ErrInvalidAmount
		}
		digits++
	}
	if digits == 0 || digits > 15 {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return NewMoney(d), nil
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount in integer cents.
func (m Money) Cents() int64 {
	return m.d.Mul(hundred).Round(0).IntPart()
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Times multiplies the amount by an integer factor.
func (m Money) Times(n int) Money { return Money{d: m.d.Mul(decimal.NewFromInt(int64(n)))} }

func (m Money) Neg() Money            { return Money{d: m.d.Neg()} }
func (m Money) IsZero() bool          { return m.d.IsZero() }
func (m Money) IsPositive() bool      { return m.d.IsPositive() }
func (m Money) IsNegative() bool      { return m.d.IsNegative() }
func (m Money) Cmp(o Money) int       { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool    { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

// PercentOf returns m / base * 100, or 0 when base is not positive.
func (m Money) PercentOf(base Money) float64 {
	if !base.d.IsPositive() {
		return 0
	}
	return m.d.Div(base.d).Mul(hundred).Round(4).InexactFloat64()
}

// Float64 returns the amount for display and charting only.
func (m Money) Float64() float64 { return m.d.InexactFloat64() }

// String renders the amount with exactly two decimals, e.g. "12.50".
func (m Money) String() string { return m.d.StringFixed(2) }

// Format renders the amount prefixed by a currency code with thousands
// separators, e.g. "USD 1,234.50".
func (m Money) Format(currency string) string {
	s := m.d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if m.d.IsNegative() {
		out = "-" + out
	}
	if currency == "" {
		return out
	}
	return currency + " " + out
}

// MarshalJSON encodes the amount as a JSON number, matching the upstream services.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*m = Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", s, ErrInvalidAmount)
	}
	*m = NewMoney(d)
	return nil
}

// Sum adds up a list of amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MaxZero clamps negative amounts to zero.
func (m Money) MaxZero() Money {
	if m.d.IsNegative() {
		return Zero
	}
	return m
}
