package quote

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func at(sec int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, sec, 0, time.UTC)
}

func TestUpdate_RewritesExternalSymbol(t *testing.T) {
	cache := NewCache(map[string]string{"XBT/USD": "BTCUSD"})

	cache.Update(model.Quote{AssetPairID: "xbt/usd", Source: "kraken", Bid: d(100), Ask: d(101), Timestamp: at(0)})

	q, ok := cache.Get("BTCUSD", "kraken")
	if !ok {
		t.Fatal("expected quote under internal pair id")
	}
	if !q.Bid.Equal(d(100)) {
		t.Errorf("bid = %s, want 100", q.Bid)
	}
}

func TestUpdate_UnmappedSymbolPassesThrough(t *testing.T) {
	cache := NewCache(nil)
	cache.Update(model.Quote{AssetPairID: "ETHUSD", Source: "binance", Timestamp: at(0)})

	if _, ok := cache.Get("ETHUSD", "binance"); !ok {
		t.Error("unmapped symbol should cache under its own id")
	}
}

func TestUpdate_OverwritesPerSource(t *testing.T) {
	cache := NewCache(nil)
	cache.Update(model.Quote{AssetPairID: "BTCUSD", Source: "binance", Bid: d(100), Timestamp: at(0)})
	cache.Update(model.Quote{AssetPairID: "BTCUSD", Source: "binance", Bid: d(105), Timestamp: at(1)})

	q, _ := cache.Get("BTCUSD", "binance")
	if !q.Bid.Equal(d(105)) {
		t.Errorf("expected the later quote to win, got bid %s", q.Bid)
	}
}

func TestLatest_PicksNewestAcrossSources(t *testing.T) {
	cache := NewCache(nil)
	cache.Update(model.Quote{AssetPairID: "BTCUSD", Source: "binance", Bid: d(100), Timestamp: at(0)})
	cache.Update(model.Quote{AssetPairID: "BTCUSD", Source: "kraken", Bid: d(101), Timestamp: at(5)})

	q, ok := cache.Latest("BTCUSD")
	if !ok {
		t.Fatal("expected a latest quote")
	}
	if q.Source != "kraken" {
		t.Errorf("expected newest source kraken, got %s", q.Source)
	}
}

func TestFresh_RejectsStaleQuotes(t *testing.T) {
	cache := NewCache(nil)
	cache.Update(model.Quote{AssetPairID: "BTCUSD", Source: "binance", Timestamp: at(0)})

	if _, ok := cache.Fresh("BTCUSD", 10*time.Second, at(5)); !ok {
		t.Error("quote aged 5s should be fresh at maxAge 10s")
	}
	if _, ok := cache.Fresh("BTCUSD", 10*time.Second, at(30)); ok {
		t.Error("quote aged 30s should be stale at maxAge 10s")
	}
	if _, ok := cache.Fresh("ETHUSD", 10*time.Second, at(1)); ok {
		t.Error("missing pair should not be fresh")
	}
}
