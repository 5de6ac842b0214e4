package model

import "github.com/shopspring/decimal"

// Venue accuracies make every rounding explicit: sell-side prices round
// up, buy-side prices round down, volumes round down.

// RoundUp rounds d toward +infinity to the given number of decimal places.
func RoundUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundCeil(places)
}

// RoundDown rounds d toward -infinity to the given number of decimal places.
func RoundDown(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundFloor(places)
}
