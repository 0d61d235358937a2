// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer cents; shopspring/decimal is used at the
// edges where strings come in or go out.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// maxCents keeps every balance well inside int64 after additions.
var maxCents = decimal.New(1, 15)

// ParseAmount converts a decimal string to a positive Money value.
//
// Dot and comma decimal separators are accepted, as are spaces, non-breaking
// spaces and underscores as thousands separators. The value is rounded
// half-up to two decimals.
//
//	ParseAmount("12.34")     -> 1234
//	ParseAmount("1 200,5")   -> 120050
//	ParseAmount("0.005")     -> 1
func ParseAmount(s string) (Money, error) {
	cents, err := parseCents(s)
	if err != nil {
		return Money{}, err
	}
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// ParseBalance is ParseAmount that also accepts zero, for opening balances.
func ParseBalance(s string) (Money, error) {
	if strings.TrimSpace(s) == "" {
		return Money{}, nil
	}
	cents, err := parseCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "_", "").Replace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	if s == "." {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThanOrEqual(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float is for charting only; arithmetic stays in cents.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// FormatMoney groups thousands with spaces and appends the currency code:
// "1 234 567.80 UZS".
func FormatMoney(m Money, c Currency) string {
	s := m.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := sign + b.String() + "." + frac
	if c != "" {
		out += " " + string(c)
	}
	return out
}
