package orders

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testSettings() model.IndexSettings {
	return model.IndexSettings{
		Name:                 "LCI",
		AssetID:              "TLCI",
		AssetPairID:          "TLCIUSD",
		SellMarkup:           d(0.10),
		BuyVolume:            d(10),
		SellVolume:           d(10),
		BuyLimitOrdersCount:  2,
		SellLimitOrdersCount: 2,
	}
}

func testPair() model.AssetPairSettings {
	return model.AssetPairSettings{
		AssetPairID:    "TLCIUSD",
		Exchange:       model.ExchangeInternal,
		BaseAsset:      "TLCI",
		QuoteAsset:     "USD",
		PriceAccuracy:  2,
		VolumeAccuracy: 2,
		MinVolume:      d(1),
	}
}

func baseAsset() model.AssetSettings {
	return model.AssetSettings{AssetID: "TLCI", Exchange: model.ExchangeInternal, Accuracy: 2}
}

func quoteAsset() model.AssetSettings {
	return model.AssetSettings{AssetID: "USD", Exchange: model.ExchangeInternal, Accuracy: 2}
}

func sideOrders(limitOrders []model.LimitOrder, side model.LimitOrderType) []model.LimitOrder {
	var out []model.LimitOrder
	for _, o := range limitOrders {
		if o.Type == side {
			out = append(out, o)
		}
	}
	return out
}

// --- Price derivation ---

func TestSellPrice_RoundsUp(t *testing.T) {
	price := SellPrice(d(100.001), d(0.10), 2)
	if !price.Equal(d(100.11)) {
		t.Errorf("expected sell price 100.11, got %s", price)
	}
}

func TestBuyPrice_RoundsDown(t *testing.T) {
	price := BuyPrice(d(100.019), 2)
	if !price.Equal(d(100.01)) {
		t.Errorf("expected buy price 100.01, got %s", price)
	}
}

// --- Volume slicing ---

func TestBuild_SlicesVolumeAcrossOrders(t *testing.T) {
	limitOrders := Build(testSettings(), testPair(), d(100.10), d(100), "wallet-1")

	sells := sideOrders(limitOrders, model.LimitOrderSell)
	buys := sideOrders(limitOrders, model.LimitOrderBuy)
	if len(sells) != 2 || len(buys) != 2 {
		t.Fatalf("expected 2 sells and 2 buys, got %d/%d", len(sells), len(buys))
	}
	for _, o := range sells {
		if !o.Volume.Equal(d(5)) || !o.Price.Equal(d(100.10)) {
			t.Errorf("sell order volume/price mismatch: %s@%s", o.Volume, o.Price)
		}
	}
	for _, o := range buys {
		if !o.Volume.Equal(d(5)) || !o.Price.Equal(d(100)) {
			t.Errorf("buy order volume/price mismatch: %s@%s", o.Volume, o.Price)
		}
	}
}

func TestBuild_CollapsesWhenSliceBelowMinVolume(t *testing.T) {
	settings := testSettings()
	settings.SellVolume = d(1.5)
	settings.SellLimitOrdersCount = 4 // slice of 0.38 < min volume 1

	limitOrders := Build(settings, testPair(), d(100.10), d(100), "wallet-1")

	sells := sideOrders(limitOrders, model.LimitOrderSell)
	if len(sells) != 1 {
		t.Fatalf("expected single collapsed sell order, got %d", len(sells))
	}
	if !sells[0].Volume.Equal(d(1.5)) {
		t.Errorf("expected collapsed volume 1.5, got %s", sells[0].Volume)
	}
}

func TestBuild_ZeroCountQuotesSingleOrder(t *testing.T) {
	settings := testSettings()
	settings.SellLimitOrdersCount = 0
	settings.BuyLimitOrdersCount = 0

	limitOrders := Build(settings, testPair(), d(100.10), d(100), "wallet-1")

	sells := sideOrders(limitOrders, model.LimitOrderSell)
	buys := sideOrders(limitOrders, model.LimitOrderBuy)
	if len(sells) != 1 || len(buys) != 1 {
		t.Fatalf("expected 1 sell and 1 buy, got %d/%d", len(sells), len(buys))
	}
	if !sells[0].Volume.Equal(d(10)) || !buys[0].Volume.Equal(d(10)) {
		t.Errorf("full volume expected on both sides, got %s/%s", sells[0].Volume, buys[0].Volume)
	}
}

func TestBuild_AssignsUniqueIDs(t *testing.T) {
	limitOrders := Build(testSettings(), testPair(), d(100.10), d(100), "wallet-1")
	seen := make(map[string]bool)
	for _, o := range limitOrders {
		if o.ID == "" || seen[o.ID] {
			t.Fatalf("duplicate or empty order id %q", o.ID)
		}
		seen[o.ID] = true
	}
}

// --- Balance clamping (base balance 7, quote 1000) ---

func TestClampToBalance_SellSideStarved(t *testing.T) {
	limitOrders := Build(testSettings(), testPair(), d(100.10), d(100), "wallet-1")

	ClampToBalance(limitOrders, baseAsset(), quoteAsset(), d(7), d(1000))
	FilterMinVolume(limitOrders, testPair().MinVolume)

	sells := sideOrders(limitOrders, model.LimitOrderSell)
	if !sells[0].Volume.Equal(d(5)) {
		t.Errorf("first sell should keep volume 5, got %s", sells[0].Volume)
	}
	if !sells[1].Volume.Equal(d(2)) {
		t.Errorf("second sell should be clamped to 2, got %s", sells[1].Volume)
	}
	for _, o := range sells {
		if o.Error != model.LimitOrderErrorNone {
			t.Errorf("sell order unexpectedly errored: %s", o.Error)
		}
	}

	buys := sideOrders(limitOrders, model.LimitOrderBuy)
	for _, o := range buys {
		if !o.Volume.Equal(d(5)) || o.Error != model.LimitOrderErrorNone {
			t.Errorf("buy side should be untouched: %s err=%s", o.Volume, o.Error)
		}
	}
}

func TestClampToBalance_BuySideUsesQuoteBalance(t *testing.T) {
	limitOrders := Build(testSettings(), testPair(), d(100.10), d(100), "wallet-1")

	// Quote balance covers one full buy (500) plus 300 of the second.
	ClampToBalance(limitOrders, baseAsset(), quoteAsset(), d(100), d(800))

	buys := sideOrders(limitOrders, model.LimitOrderBuy)
	if !buys[0].Volume.Equal(d(5)) {
		t.Errorf("first buy should keep volume 5, got %s", buys[0].Volume)
	}
	if !buys[1].Volume.Equal(d(3)) {
		t.Errorf("second buy should be clamped to 300/100=3, got %s", buys[1].Volume)
	}
}

func TestClampToBalance_ZeroBaseBalanceZeroesSells(t *testing.T) {
	limitOrders := Build(testSettings(), testPair(), d(100.10), d(100), "wallet-1")

	ClampToBalance(limitOrders, baseAsset(), quoteAsset(), decimal.Zero, d(1000))
	FilterMinVolume(limitOrders, testPair().MinVolume)

	for _, o := range sideOrders(limitOrders, model.LimitOrderSell) {
		if o.Error != model.LimitOrderErrorTooSmallVolume {
			t.Errorf("expected TooSmallVolume for starved sell, got %q", o.Error)
		}
	}
	for _, o := range sideOrders(limitOrders, model.LimitOrderBuy) {
		if o.Error != model.LimitOrderErrorNone {
			t.Errorf("buy side should proceed normally, got %q", o.Error)
		}
	}
}

// --- Min-volume filter and submission set ---

func TestFilterMinVolume_MarksSmallAndNonPositive(t *testing.T) {
	limitOrders := []model.LimitOrder{
		{Type: model.LimitOrderSell, Price: d(100), Volume: d(0.5)},
		{Type: model.LimitOrderSell, Price: d(100), Volume: decimal.Zero},
		{Type: model.LimitOrderBuy, Price: d(99), Volume: d(2)},
	}
	FilterMinVolume(limitOrders, d(1))

	if limitOrders[0].Error != model.LimitOrderErrorTooSmallVolume {
		t.Errorf("expected TooSmallVolume for volume 0.5")
	}
	if limitOrders[1].Error != model.LimitOrderErrorTooSmallVolume {
		t.Errorf("expected TooSmallVolume for volume 0")
	}
	if limitOrders[2].Error != model.LimitOrderErrorNone {
		t.Errorf("volume 2 should pass, got %q", limitOrders[2].Error)
	}
}

func TestAllowed_ExcludesErroredOrders(t *testing.T) {
	limitOrders := []model.LimitOrder{
		{ID: "a", Type: model.LimitOrderSell, Volume: d(2)},
		{ID: "b", Type: model.LimitOrderSell, Volume: d(0.5), Error: model.LimitOrderErrorTooSmallVolume},
	}
	allowed := Allowed(limitOrders)
	if len(allowed) != 1 || allowed[0].ID != "a" {
		t.Errorf("expected only order a to be allowed, got %+v", allowed)
	}
}
