// Package ledger maintains token positions for index tokens: open volume,
// the opposite-asset volume paid for it, and realized P&L computed with
// average-cost matching when inventory is closed.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

// ErrNegativeVolume is returned for trades carrying a non-positive volume.
var ErrNegativeVolume = errors.New("ledger: trade volume must be positive")

// Apply returns the token position after applying one internal trade.
//
// A Buy trade (counterparty buys the token from us) opens inventory:
// both volumes accumulate. A Sell trade closes inventory at average
// cost; the matched part realizes P&L, any unmatched remainder of the
// trade is ignored so open volume never goes negative.
func Apply(position model.TokenPosition, assetID string, trade model.InternalTrade) (model.TokenPosition, error) {
	if trade.Volume.LessThanOrEqual(decimal.Zero) {
		return position, ErrNegativeVolume
	}

	position.AssetID = assetID
	position.UpdatedAt = trade.Timestamp

	if trade.Type == model.TradeTypeBuy {
		position.OpenVolume = position.OpenVolume.Add(trade.Volume)
		position.OppositeVolume = position.OppositeVolume.Add(trade.OppositeVolume)
		return position, nil
	}

	if position.OpenVolume.LessThanOrEqual(decimal.Zero) {
		// Nothing to close against.
		return position, nil
	}

	avgCost := position.OppositeVolume.Div(position.OpenVolume)
	matched := decimal.Min(position.OpenVolume, trade.Volume)

	realized := trade.OppositeVolume.
		Mul(matched.Div(trade.Volume)).
		Sub(avgCost.Mul(matched))

	position.RealizedPnL = position.RealizedPnL.Add(realized)
	position.OpenVolume = position.OpenVolume.Sub(matched)
	position.OppositeVolume = position.OppositeVolume.Sub(avgCost.Mul(matched))

	return position, nil
}

// NewPosition returns an empty position for an index token.
func NewPosition(assetID string) model.TokenPosition {
	return model.TokenPosition{
		AssetID:        assetID,
		OpenVolume:     decimal.Zero,
		OppositeVolume: decimal.Zero,
		RealizedPnL:    decimal.Zero,
		UpdatedAt:      time.Time{},
	}
}
