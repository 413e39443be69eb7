package auction

import "github.com/shopspring/decimal"

// decimal.NewFromFloat keeps every float64 exactly, so comparisons follow
// float ordering without formatting noise.
func toDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// meetsStartingBid reports whether amount is at or above the starting bid.
func meetsStartingBid(amount, startingBid float64) bool {
	return toDecimal(amount).GreaterThanOrEqual(toDecimal(startingBid))
}

// undercuts reports whether amount is strictly lower than the current
// lowest bid. Equal amounts keep the earlier bidder.
func undercuts(amount, lowest float64) bool {
	return toDecimal(amount).LessThan(toDecimal(lowest))
}
