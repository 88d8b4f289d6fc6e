// Package money centralises monetary rounding. Simulations run on float64
// and round only at persistence points, so multi-step compounding does not
// accumulate rounding error.
package money

import "github.com/shopspring/decimal"

// Round2 rounds an amount to 2 decimal places (half away from zero).
func Round2(amount float64) float64 {
	v, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return v
}

// Equal2 reports whether two amounts agree once rounded to 2 decimals.
func Equal2(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}

// NonNegative clamps negative amounts to zero.
func NonNegative(amount float64) float64 {
	if amount < 0 {
		return 0
	}
	return amount
}
