// Package money converts partner-supplied decimal strings to integer cents.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ParseAmountCents turns "1.50", "1,50" or "2" into cents. Only the first
// comma is treated as a decimal separator. Unparseable or negative input
// yields zero, and so does anything that does not fit in int64 cents.
func ParseAmountCents(raw string) int64 {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0
	}
	value = strings.Replace(value, ",", ".", 1)
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	if amount.IsNegative() {
		return 0
	}
	cents := amount.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0
	}
	return cents.IntPart()
}

// FormatCents renders cents as a fixed two-decimal string, e.g. 1500 -> "15.00".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
