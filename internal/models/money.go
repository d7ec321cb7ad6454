package models

import "math"

// ToMinorUnits converts a major-currency amount to integer minor units
// (cents/paise) with round-half-up. Every call site that hands an amount to
// a payment provider must go through this function so the order row and the
// gateway request can never disagree by a cent.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
