// Package money holds cent-based arithmetic helpers.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent returns pct percent of amount, rounded half-up to the cent
func Percent(amount int64, pct float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(pct)).
		Div(hundred).
		Round(0).
		IntPart()
}

// Fraction returns amount*rate, rounded half-up to the cent
func Fraction(amount int64, rate float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()
}

// Min returns the smaller amount
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Format renders cents as a currency string, e.g. "$12.50"
func Format(cents int64, currency string) string {
	amount := decimal.New(cents, -2).StringFixed(2)
	switch strings.ToUpper(currency) {
	case "USD", "":
		return "$" + amount
	case "EUR":
		return "€" + amount
	case "GBP":
		return "£" + amount
	default:
		return fmt.Sprintf("%s %s", amount, strings.ToUpper(currency))
	}
}

// ToFloat converts cents to a major-unit float for display payloads
func ToFloat(cents int64) float64 {
	f, _ := decimal.New(cents, -2).Float64()
	return f
}
