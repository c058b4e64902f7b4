// Package money does all monetary arithmetic in integer minor units
// (kobo for naira, cents for USDT) to keep ledger sums exact.
package money

import (
	"fmt"
	"math"
)

// BPS is a percentage expressed in basis points (1% = 100 bps).
// Rates arrive from config as floats (15, 0.5, 7.5) and are converted
// once; everything downstream is integer math.
type BPS int64

// ParsePercent converts a percent value to basis points, exact to 1/100
// of a percent. 0.5 -> 50, 15 -> 1500, 7.5 -> 750.
func ParsePercent(pct float64) BPS {
	return BPS(math.Round(pct * 100))
}

// Pct applies a basis-point rate to an amount, flooring toward zero.
func Pct(amount int64, rate BPS) int64 {
	return amount * int64(rate) / 10000
}

// Min returns the smaller of two amounts.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// CeilDiv returns ceil(a/b) for positive a, b.
func CeilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// Format renders a minor-unit amount as a major-unit string for
// notifications and logs, e.g. 1500000 naira -> "15000.00 NGN".
func Format(amount int64, currency string) string {
	symbol := "NGN"
	if currency == "usdt" {
		symbol = "USDT"
	}
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, symbol)
}
