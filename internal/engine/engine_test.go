package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/balance"
	"github.com/indexlab/hedging-engine/internal/dedup"
	"github.com/indexlab/hedging-engine/internal/exchange"
	"github.com/indexlab/hedging-engine/internal/instrument"
	"github.com/indexlab/hedging-engine/internal/model"
	"github.com/indexlab/hedging-engine/internal/quote"
	"github.com/indexlab/hedging-engine/internal/store"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

// spyAdapter records every venue call; when execute is set, Apply
// reports each order as executed at its own price and volume.
type spyAdapter struct {
	name      string
	applied   [][]model.LimitOrder
	cancelled []string
	execute   bool
}

func (a *spyAdapter) Name() string { return a.name }

func (a *spyAdapter) Apply(_ context.Context, _ string, orders []model.LimitOrder) ([]exchange.OrderReport, error) {
	copied := append([]model.LimitOrder(nil), orders...)
	a.applied = append(a.applied, copied)

	reports := make([]exchange.OrderReport, len(orders))
	for i, o := range orders {
		status := exchange.OrderPlaced
		if a.execute {
			status = exchange.OrderExecuted
		}
		reports[i] = exchange.OrderReport{
			OrderID:        o.ID,
			Status:         status,
			ExecutedPrice:  o.Price,
			ExecutedVolume: o.Volume,
		}
	}
	return reports, nil
}

func (a *spyAdapter) Cancel(_ context.Context, assetPairID string) error {
	a.cancelled = append(a.cancelled, assetPairID)
	return nil
}

func (a *spyAdapter) Balances(context.Context) ([]model.Balance, error) { return nil, nil }

type fixture struct {
	coordinator *Coordinator
	store       *store.MemoryStore
	balances    *balance.Service
	quotes      *quote.Cache
	internal    *spyAdapter
	venue       *spyAdapter
}

// newFixture wires a coordinator over in-memory everything, with one
// quoted index (LYCI over LYCIUSD) and an external hedge venue.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.Default()

	st := store.NewMemoryStore()
	internal := &spyAdapter{name: model.ExchangeInternal}
	venue := &spyAdapter{name: "venue-a", execute: true}
	registry := exchange.NewRegistry(internal, venue)
	balances := balance.NewService(registry, logger)
	quotes := quote.NewCache(nil)

	st.PutMarketMakerState(ctx, model.MarketMakerState{Status: model.StatusActive, Timestamp: time.Now()})
	st.UpsertIndexSettings(ctx, model.IndexSettings{
		Name:                 "LYCI",
		AssetID:              "LYCI",
		AssetPairID:          "LYCIUSD",
		SellMarkup:           d("0.10"),
		BuyVolume:            d("10"),
		SellVolume:           d("10"),
		BuyLimitOrdersCount:  2,
		SellLimitOrdersCount: 2,
	})
	st.UpsertAssetPairSettings(ctx, model.AssetPairSettings{
		AssetPairID: "LYCIUSD", Exchange: model.ExchangeInternal,
		BaseAsset: "LYCI", QuoteAsset: "USD",
		PriceAccuracy: 2, VolumeAccuracy: 2, MinVolume: d("1"),
	})
	st.UpsertAssetSettings(ctx, model.AssetSettings{AssetID: "LYCI", Exchange: model.ExchangeInternal, Accuracy: 2})
	st.UpsertAssetSettings(ctx, model.AssetSettings{AssetID: "USD", Exchange: model.ExchangeInternal, Accuracy: 2})

	balances.Set(model.Balance{Exchange: model.ExchangeInternal, AssetID: "LYCI", Amount: d("7")})
	balances.Set(model.Balance{Exchange: model.ExchangeInternal, AssetID: "USD", Amount: d("1000")})

	coordinator := New(Config{
		Store:       st,
		Instruments: instrument.NewService(st, logger),
		Balances:    balances,
		Quotes:      quotes,
		Registry:    registry,
		Oracle:      dedup.NewMemoryOracle(),
		Tracer:      NopTracer{},
		Logger:      logger,
		WalletID:    "wallet-1",
	})

	return &fixture{coordinator: coordinator, store: st, balances: balances, quotes: quotes, internal: internal, venue: venue}
}

func update(value string) model.Index {
	return model.Index{
		Name:      "LYCI",
		Value:     d(value),
		Timestamp: time.Now(),
		Weights: []model.AssetWeight{
			{AssetID: "BTC", Weight: d("0.5"), Price: d("50000")},
			{AssetID: "ETH", Weight: d("0.5"), Price: d("3000")},
		},
	}
}

func TestHandleIndexWeightsOutOfBand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index := update("100")
	index.Weights = []model.AssetWeight{
		{AssetID: "BTC", Weight: d("0.85"), Price: d("50000")},
	}
	f.coordinator.HandleIndex(ctx, index)

	if len(f.internal.applied) != 0 {
		t.Error("rejected update must not reach the exchange")
	}
	if _, err := f.store.GetIndexPrice(ctx, "LYCI"); err != store.ErrNotFound {
		t.Error("rejected update must not persist a price")
	}
}

func TestHandleIndexNormalCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.coordinator.HandleIndex(ctx, update("100"))

	limitOrders, err := f.store.GetLimitOrders(ctx, "LYCIUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limitOrders) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(limitOrders))
	}

	var sells, buys []model.LimitOrder
	for _, o := range limitOrders {
		if o.Type == model.LimitOrderSell {
			sells = append(sells, o)
		} else {
			buys = append(buys, o)
		}
	}

	if len(sells) != 2 || len(buys) != 2 {
		t.Fatalf("expected 2 sells and 2 buys, got %d/%d", len(sells), len(buys))
	}
	for _, o := range sells {
		if !o.Price.Equal(d("100.10")) {
			t.Errorf("sell price = %s, want 100.10", o.Price)
		}
	}
	for _, o := range buys {
		if !o.Price.Equal(d("100")) || !o.Volume.Equal(d("5")) {
			t.Errorf("buy order = %s @ %s, want 5 @ 100", o.Volume, o.Price)
		}
	}

	// Base balance 7 clamps the second sell from 5 down to 2.
	volumes := []decimal.Decimal{sells[0].Volume, sells[1].Volume}
	if !volumes[0].Add(volumes[1]).Equal(d("7")) {
		t.Errorf("sell volumes %s + %s should spend exactly the base balance", volumes[0], volumes[1])
	}

	if len(f.internal.applied) != 1 || len(f.internal.applied[0]) != 4 {
		t.Fatalf("expected one Apply with 4 allowed orders, got %+v", f.internal.applied)
	}
}

func TestHandleInternalTradesNoHedging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trade := model.InternalTrade{
		ID:             "t1",
		AssetPairID:    "LYCIUSD",
		Type:           model.TradeTypeBuy,
		Price:          d("100"),
		Volume:         d("4"),
		OppositeVolume: d("400"),
		Timestamp:      time.Now(),
	}
	f.coordinator.HandleInternalTrades(ctx, []model.InternalTrade{trade})

	position, err := f.store.GetTokenPosition(ctx, "LYCI")
	if err != nil {
		t.Fatalf("position not persisted: %v", err)
	}
	if !position.OpenVolume.Equal(d("4")) {
		t.Errorf("open volume = %s, want 4", position.OpenVolume)
	}

	trades, _ := f.store.ListInternalTrades(ctx, "LYCIUSD", 0)
	if len(trades) != 1 {
		t.Fatalf("expected 1 persisted trade, got %d", len(trades))
	}

	if len(f.venue.applied) != 0 || len(f.internal.applied) != 0 {
		t.Error("trade path must not place any order")
	}

	// Replaying the same trade id is a no-op.
	f.coordinator.HandleInternalTrades(ctx, []model.InternalTrade{trade})
	position, _ = f.store.GetTokenPosition(ctx, "LYCI")
	if !position.OpenVolume.Equal(d("4")) {
		t.Errorf("replayed trade mutated the ledger: open volume = %s", position.OpenVolume)
	}

	// Trades on unconfigured pairs are ignored without error.
	f.coordinator.HandleInternalTrades(ctx, []model.InternalTrade{{
		ID: "t2", AssetPairID: "OTHERUSD", Type: model.TradeTypeBuy,
		Volume: d("1"), OppositeVolume: d("10"), Timestamp: time.Now(),
	}})
	if _, err := f.store.GetTokenPosition(ctx, "OTHER"); err != store.ErrNotFound {
		t.Error("unconfigured pair must not create a position")
	}
}

// flakyStore fails the first trade insert to simulate a transient
// persistence outage.
type flakyStore struct {
	store.Store
	failures int
}

func (s *flakyStore) InsertInternalTrade(ctx context.Context, trade model.InternalTrade, position model.TokenPosition) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	return s.Store.InsertInternalTrade(ctx, trade, position)
}

func TestTradeRedeliveryAfterPersistFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logger := slog.Default()

	flaky := &flakyStore{Store: f.store, failures: 1}
	registry := exchange.NewRegistry(&spyAdapter{name: model.ExchangeInternal})
	coordinator := New(Config{
		Store:       flaky,
		Instruments: instrument.NewService(flaky, logger),
		Balances:    balance.NewService(registry, logger),
		Quotes:      quote.NewCache(nil),
		Registry:    registry,
		Oracle:      dedup.NewMemoryOracle(),
		Tracer:      NopTracer{},
		Logger:      logger,
		WalletID:    "wallet-1",
	})

	trade := model.InternalTrade{
		ID:             "t1",
		AssetPairID:    "LYCIUSD",
		Type:           model.TradeTypeBuy,
		Price:          d("100"),
		Volume:         d("4"),
		OppositeVolume: d("400"),
		Timestamp:      time.Now(),
	}
	coordinator.HandleInternalTrades(ctx, []model.InternalTrade{trade})
	if _, err := f.store.GetTokenPosition(ctx, "LYCI"); err != store.ErrNotFound {
		t.Fatalf("failed persist must not leave a position, got %v", err)
	}

	// The insert failed before the id was marked applied, so the bus
	// redelivery lands once the store recovers.
	coordinator.HandleInternalTrades(ctx, []model.InternalTrade{trade})
	position, err := f.store.GetTokenPosition(ctx, "LYCI")
	if err != nil {
		t.Fatalf("redelivered trade not persisted: %v", err)
	}
	if !position.OpenVolume.Equal(d("4")) {
		t.Errorf("open volume = %s, want 4", position.OpenVolume)
	}
	trades, _ := f.store.ListInternalTrades(ctx, "LYCIUSD", 0)
	if len(trades) != 1 {
		t.Fatalf("expected exactly one persisted trade, got %d", len(trades))
	}
}

func TestHandleIndexDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.PutMarketMakerState(ctx, model.MarketMakerState{Status: model.StatusDisabled, Timestamp: time.Now()})
	f.coordinator.HandleIndex(ctx, update("100"))

	if len(f.internal.applied) != 0 || len(f.internal.cancelled) != 0 {
		t.Error("disabled engine must not touch the exchange")
	}
	if _, err := f.store.GetIndexPrice(ctx, "LYCI"); err != store.ErrNotFound {
		t.Error("disabled engine must not persist a price")
	}
}

func TestHandleIndexBalanceStarvation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.balances.Set(model.Balance{Exchange: model.ExchangeInternal, AssetID: "LYCI", Amount: decimal.Zero})
	f.coordinator.HandleIndex(ctx, update("100"))

	limitOrders, _ := f.store.GetLimitOrders(ctx, "LYCIUSD")
	for _, o := range limitOrders {
		switch o.Type {
		case model.LimitOrderSell:
			if o.Error != model.LimitOrderErrorTooSmallVolume {
				t.Errorf("starved sell should carry TooSmallVolume, got %q", o.Error)
			}
		case model.LimitOrderBuy:
			if o.Error != model.LimitOrderErrorNone {
				t.Errorf("buy side should proceed, got %q", o.Error)
			}
		}
	}

	if len(f.internal.applied) != 1 {
		t.Fatalf("expected one Apply, got %d", len(f.internal.applied))
	}
	for _, o := range f.internal.applied[0] {
		if o.Type == model.LimitOrderSell {
			t.Error("no sell order may be submitted when the base balance is empty")
		}
	}
}

func TestHandleIndexHedgesNetExposure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.PutHedgeSettings(ctx, model.HedgeSettings{
		ThresholdDown: d("1"), ThresholdUp: d("5"), ThresholdCritical: d("20"),
		MultiplierLow: d("0.5"), MultiplierHigh: d("0.8"),
	})
	f.store.UpsertAssetHedgeSettings(ctx, model.AssetHedgeSettings{
		AssetID: "BTC", Exchange: "venue-a", AssetPairID: "BTCUSD",
		Approved: true, Mode: model.HedgeModeAuto,
	})
	f.store.UpsertAssetPairSettings(ctx, model.AssetPairSettings{
		AssetPairID: "BTCUSD", Exchange: "venue-a",
		BaseAsset: "BTC", QuoteAsset: "USD",
		PriceAccuracy: 2, VolumeAccuracy: 4, MinVolume: d("0.001"),
	})
	f.quotes.Update(model.Quote{
		AssetPairID: "BTCUSD", Source: "venue-a",
		Bid: d("50000"), Ask: d("50010"), Timestamp: time.Now(),
	})

	// Open 6 LYCI of inventory; BTC weight 0.5 puts the net at 3.
	f.coordinator.HandleInternalTrades(ctx, []model.InternalTrade{{
		ID: "t1", AssetPairID: "LYCIUSD", Type: model.TradeTypeBuy,
		Price: d("100"), Volume: d("6"), OppositeVolume: d("600"), Timestamp: time.Now(),
	}})
	if len(f.venue.applied) != 0 {
		t.Fatal("trade ingestion must not hedge")
	}

	f.coordinator.HandleIndex(ctx, update("100"))

	// The 1-5 band hedges |net|*0.5 = 1.5, sell side, priced off the bid.
	if len(f.venue.applied) != 1 || len(f.venue.applied[0]) != 1 {
		t.Fatalf("expected one hedge order, got %+v", f.venue.applied)
	}
	order := f.venue.applied[0][0]
	if order.Type != model.LimitOrderSell {
		t.Errorf("hedge side = %s, want Sell", order.Type)
	}
	if !order.Volume.Equal(d("1.5")) {
		t.Errorf("hedge volume = %s, want 1.5", order.Volume)
	}
	if !order.Price.Equal(d("50000")) {
		t.Errorf("hedge price = %s, want 50000", order.Price)
	}

	// The executed report books an external trade and shifts the
	// hedge position.
	position, err := f.store.GetHedgePosition(ctx, "BTC")
	if err != nil {
		t.Fatalf("hedge position not persisted: %v", err)
	}
	if !position.Volume.Equal(d("1.5")) {
		t.Errorf("hedge position = %s, want 1.5", position.Volume)
	}
	trades, _ := f.store.ListExternalTrades(ctx, "venue-a", 0)
	if len(trades) != 1 || trades[0].AssetID != "BTC" {
		t.Fatalf("expected one external trade for BTC, got %+v", trades)
	}
}

func TestHedgeSkippedWithoutFreshQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.PutHedgeSettings(ctx, model.HedgeSettings{
		ThresholdDown: d("1"), ThresholdUp: d("5"), ThresholdCritical: d("20"),
		MultiplierLow: d("0.5"), MultiplierHigh: d("0.8"),
	})
	f.store.UpsertAssetHedgeSettings(ctx, model.AssetHedgeSettings{
		AssetID: "BTC", Exchange: "venue-a", AssetPairID: "BTCUSD",
		Approved: true, Mode: model.HedgeModeAuto,
	})
	f.store.UpsertAssetPairSettings(ctx, model.AssetPairSettings{
		AssetPairID: "BTCUSD", Exchange: "venue-a",
		BaseAsset: "BTC", QuoteAsset: "USD",
		PriceAccuracy: 2, VolumeAccuracy: 4, MinVolume: d("0.001"),
	})
	// Quote far older than the freshness window.
	f.quotes.Update(model.Quote{
		AssetPairID: "BTCUSD", Source: "venue-a",
		Bid: d("50000"), Ask: d("50010"), Timestamp: time.Now().Add(-time.Hour),
	})

	f.coordinator.HandleInternalTrades(ctx, []model.InternalTrade{{
		ID: "t1", AssetPairID: "LYCIUSD", Type: model.TradeTypeBuy,
		Price: d("100"), Volume: d("6"), OppositeVolume: d("600"), Timestamp: time.Now(),
	}})
	f.coordinator.HandleIndex(ctx, update("100"))

	if len(f.venue.applied) != 0 {
		t.Error("stale quote must not produce a hedge order")
	}
}

func TestSetStateDisableCancelsOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.coordinator.HandleIndex(ctx, update("100"))

	err := f.coordinator.SetState(ctx, model.MarketMakerState{
		Status: model.StatusDisabled, Timestamp: time.Now(), Reason: "maintenance", UserID: "op1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.internal.cancelled) != 1 || f.internal.cancelled[0] != "LYCIUSD" {
		t.Fatalf("disable should cancel the live set, got %v", f.internal.cancelled)
	}
	limitOrders, _ := f.store.GetLimitOrders(ctx, "LYCIUSD")
	if len(limitOrders) != 0 {
		t.Error("persisted order set should be cleared on disable")
	}
}

func TestRunHedgeCycleRespectsGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.PutMarketMakerState(ctx, model.MarketMakerState{Status: model.StatusDisabled, Timestamp: time.Now()})
	f.coordinator.RunHedgeCycle(ctx)

	if len(f.venue.applied) != 0 {
		t.Error("disabled engine must not hedge")
	}
}
