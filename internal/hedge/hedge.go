// Package hedge decides external hedge orders from net asset exposure
// using threshold bands. The decision is pure; the engine resolves the
// venue, price and submission.
//
// Bands over |net| with settings (Td, Tu, Tc), 0 < Td < Tu < Tc:
//
//	|net| <= Td          no action
//	Td < |net| <= Tu     order of |net| * multiplierLow
//	Tu < |net| <= Tc     order of |net| * multiplierHigh
//	|net| > Tc           order of |net|, urgent
//
// The hedge side is opposite to the sign of the net exposure.
package hedge

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

var (
	// ErrInvalidThresholds is returned when the band boundaries are not
	// strictly increasing positive values.
	ErrInvalidThresholds = errors.New("hedge: thresholds must satisfy 0 < down < up < critical")

	// ErrInvalidMultipliers is returned when the high-band multiplier does
	// not exceed the low-band one.
	ErrInvalidMultipliers = errors.New("hedge: high multiplier must exceed low multiplier")

	// ErrNoFreshQuote is returned when no usable external quote exists for
	// the hedge instrument; the cycle fails for that asset only.
	ErrNoFreshQuote = errors.New("hedge: no fresh quote for asset pair")
)

// ValidateSettings checks the singleton hedge configuration.
func ValidateSettings(settings model.HedgeSettings) error {
	if settings.ThresholdDown.LessThanOrEqual(decimal.Zero) ||
		settings.ThresholdUp.LessThanOrEqual(settings.ThresholdDown) ||
		settings.ThresholdCritical.LessThanOrEqual(settings.ThresholdUp) {
		return ErrInvalidThresholds
	}
	if settings.MultiplierHigh.LessThanOrEqual(settings.MultiplierLow) {
		return ErrInvalidMultipliers
	}
	return nil
}

// Decision is the outcome of the band check for one asset.
type Decision struct {
	Volume decimal.Decimal
	Side   model.LimitOrderType
	Urgent bool
}

// None reports whether the exposure is inside the no-action band.
func (d Decision) None() bool {
	return d.Volume.IsZero()
}

// Decide maps a net signed exposure to a hedge decision.
func Decide(net decimal.Decimal, settings model.HedgeSettings) Decision {
	abs := net.Abs()

	side := model.LimitOrderSell
	if net.IsNegative() {
		side = model.LimitOrderBuy
	}

	switch {
	case abs.LessThanOrEqual(settings.ThresholdDown):
		return Decision{}
	case abs.LessThanOrEqual(settings.ThresholdUp):
		return Decision{Volume: abs.Mul(settings.MultiplierLow), Side: side}
	case abs.LessThanOrEqual(settings.ThresholdCritical):
		return Decision{Volume: abs.Mul(settings.MultiplierHigh), Side: side}
	default:
		return Decision{Volume: abs, Side: side, Urgent: true}
	}
}

// BuildOrder turns a decision into a venue-ready limit order priced from
// the latest external quote: sells hit the bid rounded up, buys lift the
// ask rounded down, volumes round down to the venue accuracy. An order
// below the venue minimum comes back marked TooSmallVolume.
func BuildOrder(decision Decision, quote model.Quote, pair model.AssetPairSettings) model.LimitOrder {
	price := model.RoundDown(quote.Ask, pair.PriceAccuracy)
	if decision.Side == model.LimitOrderSell {
		price = model.RoundUp(quote.Bid, pair.PriceAccuracy)
	}

	volume := model.RoundDown(decision.Volume, pair.VolumeAccuracy)

	order := model.LimitOrder{
		ID:     uuid.New().String(),
		Type:   decision.Side,
		Price:  price,
		Volume: volume,
	}
	if volume.LessThan(pair.MinVolume) || volume.LessThanOrEqual(decimal.Zero) {
		order.Error = model.LimitOrderErrorTooSmallVolume
	}
	return order
}
