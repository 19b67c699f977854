package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds a monetary or percentage value to two decimals, half away from zero.
// Computations keep full precision and call this only when building output rows.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// safeDiv returns n/d, or zero when d is zero or the quotient is not finite.
func safeDiv(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	q := n / d
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}
