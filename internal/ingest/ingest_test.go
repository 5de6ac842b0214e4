package ingest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/indexlab/hedging-engine/internal/balance"
	"github.com/indexlab/hedging-engine/internal/dedup"
	"github.com/indexlab/hedging-engine/internal/engine"
	"github.com/indexlab/hedging-engine/internal/exchange"
	"github.com/indexlab/hedging-engine/internal/instrument"
	"github.com/indexlab/hedging-engine/internal/model"
	"github.com/indexlab/hedging-engine/internal/quote"
	"github.com/indexlab/hedging-engine/internal/store"
)

func newSubscriber(t *testing.T) (*Subscriber, *quote.Cache, *store.MemoryStore) {
	t.Helper()
	logger := slog.Default()
	st := store.NewMemoryStore()
	registry := exchange.NewRegistry()
	quotes := quote.NewCache(map[string]string{"XBTUSD": "BTCUSD"})

	coordinator := engine.New(engine.Config{
		Store:       st,
		Instruments: instrument.NewService(st, logger),
		Balances:    balance.NewService(registry, logger),
		Quotes:      quotes,
		Registry:    registry,
		Oracle:      dedup.NewMemoryOracle(),
		Tracer:      engine.NopTracer{},
		Logger:      logger,
	})

	return NewSubscriber(Config{}, coordinator, quotes, logger), quotes, st
}

func TestHandleQuoteAppliesMapping(t *testing.T) {
	s, quotes, _ := newSubscriber(t)

	payload := []byte(`{"asset":"XBTUSD","bid":49990.5,"ask":50010,"timestamp":"2026-08-01T10:00:00Z","source":"venue-a"}`)
	if err := s.handleQuote(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, ok := quotes.Get("BTCUSD", "venue-a")
	if !ok {
		t.Fatal("quote not cached under mapped pair id")
	}
	if q.Bid.String() != "49990.5" || q.Ask.String() != "50010" {
		t.Errorf("cached quote = %s/%s", q.Bid, q.Ask)
	}
}

func TestHandleQuoteMalformed(t *testing.T) {
	s, _, _ := newSubscriber(t)
	if err := s.handleQuote(context.Background(), []byte(`{"bid":"not a number"}`)); err == nil {
		t.Error("malformed payload should error")
	}
}

func TestHandleTradesBatchAndSingle(t *testing.T) {
	s, _, _ := newSubscriber(t)
	ctx := context.Background()

	batch := []byte(`[{"id":"t1","assetPairId":"LYCIUSD","type":"Buy","price":100,"volume":2,"oppositeVolume":200,"timestamp":"2026-08-01T10:00:00Z","walletId":"w1"}]`)
	if err := s.handleTrades(ctx, batch); err != nil {
		t.Fatalf("batch payload: %v", err)
	}

	single := []byte(`{"id":"t2","assetPairId":"LYCIUSD","type":"Sell","price":100,"volume":1,"oppositeVolume":100,"timestamp":"2026-08-01T10:00:00Z"}`)
	if err := s.handleTrades(ctx, single); err != nil {
		t.Fatalf("single payload: %v", err)
	}

	if err := s.handleTrades(ctx, []byte(`"garbage"`)); err == nil {
		t.Error("malformed payload should error")
	}
}

func TestHandleIndexDecodes(t *testing.T) {
	s, _, st := newSubscriber(t)
	ctx := context.Background()

	st.PutMarketMakerState(ctx, model.MarketMakerState{Status: model.StatusActive})

	payload := []byte(`{"name":"LYCI","value":100,"timestamp":"2026-08-01T10:00:00Z","weights":[{"assetId":"BTC","weight":0.5,"price":50000},{"assetId":"ETH","weight":0.5,"price":3000}]}`)
	if err := s.handleIndex(ctx, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	price, err := st.GetIndexPrice(ctx, "LYCI")
	if err != nil {
		t.Fatalf("price not persisted: %v", err)
	}
	if price.Price.String() != "100" || len(price.Weights) != 2 {
		t.Errorf("persisted price = %+v", price)
	}
}
