package wac

import "github.com/shopspring/decimal"

var (
	// Epsilon is the tolerance below which a quantity is treated as zero
	// by the aggregation fold. A sell that brings holdings within Epsilon
	// of zero closes the position.
	Epsilon = decimal.New(1, -8) // 1e-8

	// DustThreshold is the larger display-level cutoff: portfolio
	// summaries drop groups whose absolute holdings fall below it.
	DustThreshold = decimal.New(1, -6) // 1e-6
)

// IsApproximatelyZero reports whether v is within Epsilon of zero.
// This is the single float-comparison helper shared by the aggregator,
// the recalculator, and the portfolio roll-up.
func IsApproximatelyZero(v decimal.Decimal) bool {
	return v.Abs().LessThan(Epsilon)
}

// IsDust reports whether a holding is too small to display.
func IsDust(v decimal.Decimal) bool {
	return v.Abs().LessThan(DustThreshold)
}
