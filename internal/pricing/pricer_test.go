package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func update(value float64, weights ...model.AssetWeight) model.Index {
	return model.Index{
		Name:      "LCI",
		Value:     d(value),
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Weights:   weights,
	}
}

func weight(asset string, w, price float64) model.AssetWeight {
	return model.AssetWeight{AssetID: asset, Weight: d(w), Price: d(price)}
}

// --- Validation tests ---

func TestValidate_WeightsSumBelowBand(t *testing.T) {
	err := Validate(update(100, weight("BTC", 0.5, 50000), weight("ETH", 0.35, 3000)))
	if err != ErrInvalidWeights {
		t.Errorf("expected ErrInvalidWeights for sum 0.85, got %v", err)
	}
}

func TestValidate_WeightsSumAboveBand(t *testing.T) {
	err := Validate(update(100, weight("BTC", 0.6, 50000), weight("ETH", 0.55, 3000)))
	if err != ErrInvalidWeights {
		t.Errorf("expected ErrInvalidWeights for sum 1.15, got %v", err)
	}
}

func TestValidate_WeightsAtBandEdges(t *testing.T) {
	if err := Validate(update(100, weight("BTC", 0.9, 50000))); err != nil {
		t.Errorf("sum 0.9 should be accepted, got %v", err)
	}
	if err := Validate(update(100, weight("BTC", 1.1, 50000))); err != nil {
		t.Errorf("sum 1.1 should be accepted, got %v", err)
	}
}

func TestValidate_NonPositiveValue(t *testing.T) {
	if err := Validate(update(0, weight("BTC", 1, 50000))); err != ErrInvalidValue {
		t.Errorf("expected ErrInvalidValue for value 0, got %v", err)
	}
	if err := Validate(update(-5, weight("BTC", 1, 50000))); err != ErrInvalidValue {
		t.Errorf("expected ErrInvalidValue for value -5, got %v", err)
	}
}

// --- K computation tests ---

func TestNext_FirstObservationInitializesK(t *testing.T) {
	price, err := Next(nil, update(100, weight("BTC", 0.6, 50000), weight("ETH", 0.4, 3000)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.K.Equal(d(100)) {
		t.Errorf("expected K=100 on first observation, got %s", price.K)
	}
	if !price.Price.Equal(price.K) {
		t.Errorf("published price should equal K: price=%s k=%s", price.Price, price.K)
	}
	if len(price.Weights) != 2 {
		t.Errorf("expected weight snapshot of 2 entries, got %d", len(price.Weights))
	}
}

func TestNext_UnchangedPricesKeepK(t *testing.T) {
	first, _ := Next(nil, update(100, weight("BTC", 0.6, 50000), weight("ETH", 0.4, 3000)))

	next, err := Next(&first, update(105, weight("BTC", 0.6, 50000), weight("ETH", 0.4, 3000)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// R = 0.6*1 + 0.4*1 = 1, so K is unchanged regardless of the raw value.
	if !next.K.Equal(d(100)) {
		t.Errorf("expected K=100 for unchanged constituent prices, got %s", next.K)
	}
}

func TestNext_WeightedRelativeReturn(t *testing.T) {
	first, _ := Next(nil, update(100, weight("BTC", 0.5, 100), weight("ETH", 0.5, 10)))

	// BTC +10%, ETH -10%: R = 0.5*1.1 + 0.5*0.9 = 1 -> K unchanged.
	next, err := Next(&first, update(100, weight("BTC", 0.5, 110), weight("ETH", 0.5, 9)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.K.Equal(d(100)) {
		t.Errorf("expected K=100 for offsetting returns, got %s", next.K)
	}

	// BTC +20% with full weight: R = 1.2 -> K = 120.
	second, _ := Next(&next, update(100, weight("BTC", 0.5, 132), weight("ETH", 0.5, 9)))
	expected := d(100).Mul(d(0.5).Mul(d(1.2)).Add(d(0.5)))
	if !second.K.Equal(expected) {
		t.Errorf("expected K=%s, got %s", expected, second.K)
	}
}

func TestNext_NewConstituentContributesUnitReturn(t *testing.T) {
	first, _ := Next(nil, update(100, weight("BTC", 1, 100)))

	// XRP joins the basket: its term must be weight*1 and its price
	// must enter the snapshot for the next round.
	next, err := Next(&first, update(100, weight("BTC", 0.5, 100), weight("XRP", 0.5, 2)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.K.Equal(d(100)) {
		t.Errorf("expected K=100 with new constituent at unit return, got %s", next.K)
	}

	third, err := Next(&next, update(100, weight("BTC", 0.5, 100), weight("XRP", 0.5, 4)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// XRP doubled: R = 0.5 + 0.5*2 = 1.5.
	if !third.K.Equal(d(150)) {
		t.Errorf("expected K=150 after XRP doubled, got %s", third.K)
	}
}

func TestNext_RejectedUpdateLeavesNoPrice(t *testing.T) {
	first, _ := Next(nil, update(100, weight("BTC", 1, 100)))

	_, err := Next(&first, update(100, weight("BTC", 0.5, 110)))
	if err != ErrInvalidWeights {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
	// The caller keeps the previous snapshot; K must not have moved.
	if !first.K.Equal(d(100)) {
		t.Errorf("previous K mutated on rejected update: %s", first.K)
	}
}
