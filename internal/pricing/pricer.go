// Package pricing derives index token prices from basket updates.
//
// The published price of an index is a running cost basis factor K:
// on the first accepted update K is initialized to the raw index value,
// and each later update multiplies K by the weighted relative return of
// the basket constituents. All arithmetic uses shopspring/decimal —
// never float64 for money.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

var (
	// ErrInvalidWeights is returned when the basket weights sum outside
	// the accepted band [0.9, 1.1].
	ErrInvalidWeights = errors.New("pricing: index weights sum outside [0.9, 1.1]")

	// ErrInvalidValue is returned when the raw index value is not positive.
	ErrInvalidValue = errors.New("pricing: index value must be positive")
)

var (
	minTotalWeight = decimal.NewFromFloat(0.9)
	maxTotalWeight = decimal.NewFromFloat(1.1)
)

// Validate checks an inbound index update against the weight and value
// sanity bounds. Updates that fail validation must not mutate stored state.
func Validate(index model.Index) error {
	total := decimal.Zero
	for _, w := range index.Weights {
		total = total.Add(w.Weight)
	}
	if total.LessThan(minTotalWeight) || total.GreaterThan(maxTotalWeight) {
		return ErrInvalidWeights
	}
	if index.Value.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidValue
	}
	return nil
}

// Next computes the next index price from the previous one.
//
// prev == nil marks the first observation: K starts at the raw index
// value. Otherwise K is multiplied by R = Σ wᵢ·(priceᵢ/prevPriceᵢ); a
// constituent with no previous price (new entrant) contributes a return
// of 1 and its previous price is set to the current one via the snapshot.
func Next(prev *model.IndexPrice, index model.Index) (model.IndexPrice, error) {
	if err := Validate(index); err != nil {
		return model.IndexPrice{}, err
	}

	if prev == nil {
		return model.IndexPrice{
			Name:      index.Name,
			Price:     index.Value,
			K:         index.Value,
			Timestamp: index.Timestamp,
			Weights:   snapshot(index.Weights),
		}, nil
	}

	prevPrices := make(map[string]decimal.Decimal, len(prev.Weights))
	for _, w := range prev.Weights {
		prevPrices[w.AssetID] = w.Price
	}

	r := decimal.Zero
	for _, w := range index.Weights {
		prevPrice, ok := prevPrices[w.AssetID]
		if !ok || prevPrice.LessThanOrEqual(decimal.Zero) {
			// New constituent: relative return of 1.
			r = r.Add(w.Weight)
			continue
		}
		r = r.Add(w.Weight.Mul(w.Price.Div(prevPrice)))
	}

	k := prev.K.Mul(r)

	return model.IndexPrice{
		Name:      index.Name,
		Price:     k,
		K:         k,
		Timestamp: index.Timestamp,
		Weights:   snapshot(index.Weights),
	}, nil
}

// snapshot copies the weights so the stored previous state cannot be
// mutated through the inbound message.
func snapshot(weights []model.AssetWeight) []model.AssetWeight {
	out := make([]model.AssetWeight, len(weights))
	copy(out, weights)
	return out
}
