// Package orders builds the limit-order set quoted for an index token:
// price derivation from the index price and markup, volume slicing into
// a ladder of equal orders, balance clamping against venue funds, and
// the minimum-volume filter. Functions are pure over decimals; callers
// persist and submit the result.
package orders

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

// SellPrice returns the ask quoted for an index: index price plus markup,
// rounded up to the venue price accuracy.
func SellPrice(indexPrice, sellMarkup decimal.Decimal, priceAccuracy int32) decimal.Decimal {
	return model.RoundUp(indexPrice.Add(sellMarkup), priceAccuracy)
}

// BuyPrice returns the bid quoted for an index: the index price rounded
// down to the venue price accuracy.
func BuyPrice(indexPrice decimal.Decimal, priceAccuracy int32) decimal.Decimal {
	return model.RoundDown(indexPrice, priceAccuracy)
}

// Build derives the raw limit-order set for one quoting cycle.
//
// Each side's configured volume is sliced into count equal orders; if a
// slice would fall below the venue minimum the side collapses into a
// single order carrying the full volume.
func Build(settings model.IndexSettings, pair model.AssetPairSettings,
	sellPrice, buyPrice decimal.Decimal, walletID string) []model.LimitOrder {

	var limitOrders []model.LimitOrder

	// Counts below 1 quote a single order rather than divide by zero;
	// rows can reach the store without passing admin validation.
	sellCount := max(settings.SellLimitOrdersCount, 1)
	buyCount := max(settings.BuyLimitOrdersCount, 1)

	sellVolume := settings.SellVolume.
		Div(decimal.NewFromInt(int64(sellCount))).
		Round(pair.VolumeAccuracy)

	if sellVolume.GreaterThanOrEqual(pair.MinVolume) {
		for i := 0; i < sellCount; i++ {
			limitOrders = append(limitOrders, newOrder(model.LimitOrderSell, walletID, sellPrice, sellVolume))
		}
	} else {
		limitOrders = append(limitOrders, newOrder(model.LimitOrderSell, walletID, sellPrice,
			settings.SellVolume.Round(pair.VolumeAccuracy)))
	}

	buyVolume := settings.BuyVolume.
		Div(decimal.NewFromInt(int64(buyCount))).
		Round(pair.VolumeAccuracy)

	if buyVolume.GreaterThanOrEqual(pair.MinVolume) {
		for i := 0; i < buyCount; i++ {
			limitOrders = append(limitOrders, newOrder(model.LimitOrderBuy, walletID, buyPrice, buyVolume))
		}
	} else {
		limitOrders = append(limitOrders, newOrder(model.LimitOrderBuy, walletID, buyPrice,
			settings.BuyVolume.Round(pair.VolumeAccuracy)))
	}

	return limitOrders
}

// ClampToBalance shrinks order volumes so the set never spends more than
// the available balances. Sell orders consume the base asset cheapest
// first; buy orders consume the quote asset starting from the best bid.
// Orders already carrying an error are skipped.
func ClampToBalance(limitOrders []model.LimitOrder,
	baseAsset, quoteAsset model.AssetSettings,
	baseBalance, quoteBalance decimal.Decimal) {

	sells := selectSide(limitOrders, model.LimitOrderSell)
	sort.SliceStable(sells, func(i, j int) bool {
		return limitOrders[sells[i]].Price.LessThan(limitOrders[sells[j]].Price)
	})

	balance := baseBalance
	for _, idx := range sells {
		order := &limitOrders[idx]
		amount := model.RoundUp(order.Volume, baseAsset.Accuracy)
		if balance.Sub(amount).IsNegative() {
			order.Volume = model.RoundDown(balance, baseAsset.Accuracy)
		}
		balance = decimal.Max(balance.Sub(amount), decimal.Zero)
	}

	buys := selectSide(limitOrders, model.LimitOrderBuy)
	sort.SliceStable(buys, func(i, j int) bool {
		return limitOrders[buys[i]].Price.GreaterThan(limitOrders[buys[j]].Price)
	})

	balance = quoteBalance
	for _, idx := range buys {
		order := &limitOrders[idx]
		amount := model.RoundUp(order.Price.Mul(order.Volume), quoteAsset.Accuracy)
		if balance.Sub(amount).IsNegative() {
			order.Volume = model.RoundDown(balance.Div(order.Price), baseAsset.Accuracy)
		}
		balance = decimal.Max(balance.Sub(amount), decimal.Zero)
	}
}

// FilterMinVolume marks orders whose volume fell below the venue minimum
// (or to zero) after clamping. Erroring orders stay in the set for
// observability but are never submitted.
func FilterMinVolume(limitOrders []model.LimitOrder, minVolume decimal.Decimal) {
	for i := range limitOrders {
		if limitOrders[i].Error != model.LimitOrderErrorNone {
			continue
		}
		if limitOrders[i].Volume.LessThan(minVolume) || limitOrders[i].Volume.LessThanOrEqual(decimal.Zero) {
			limitOrders[i].Error = model.LimitOrderErrorTooSmallVolume
		}
	}
}

// Allowed returns the orders that may be sent to the exchange.
func Allowed(limitOrders []model.LimitOrder) []model.LimitOrder {
	var allowed []model.LimitOrder
	for _, order := range limitOrders {
		if order.Error == model.LimitOrderErrorNone {
			allowed = append(allowed, order)
		}
	}
	return allowed
}

func newOrder(orderType model.LimitOrderType, walletID string, price, volume decimal.Decimal) model.LimitOrder {
	return model.LimitOrder{
		ID:       uuid.New().String(),
		WalletID: walletID,
		Type:     orderType,
		Price:    price,
		Volume:   volume,
	}
}

// selectSide returns indexes of non-erroring orders of one side, so the
// clamp can mutate the original slice in place.
func selectSide(limitOrders []model.LimitOrder, side model.LimitOrderType) []int {
	var idxs []int
	for i := range limitOrders {
		if limitOrders[i].Type == side && limitOrders[i].Error == model.LimitOrderErrorNone {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
