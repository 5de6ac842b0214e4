// Package exchange abstracts order placement on trading venues. The
// internal venue and every external hedge venue sit behind the same
// Adapter interface.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

// ErrNotReachable is returned when a venue cannot be contacted.
var ErrNotReachable = errors.New("exchange: not reachable")

// RejectedError is returned when a venue refuses an order outright.
type RejectedError struct {
	Exchange string
	Reason   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("exchange %s rejected order: %s", e.Exchange, e.Reason)
}

// OrderStatus is the terminal state a venue reports for a placed order.
type OrderStatus string

const (
	OrderPlaced   OrderStatus = "Placed"
	OrderExecuted OrderStatus = "Executed"
	OrderRejected OrderStatus = "Rejected"
)

// OrderReport is a venue's acknowledgement of one submitted order.
// Executed reports carry the fill price and volume.
type OrderReport struct {
	OrderID        string          `json:"order_id"`
	ExternalID     string          `json:"external_id,omitempty"`
	Status         OrderStatus     `json:"status"`
	ExecutedPrice  decimal.Decimal `json:"executed_price"`
	ExecutedVolume decimal.Decimal `json:"executed_volume"`
	Reason         string          `json:"reason,omitempty"`
}

// Adapter is a single venue. Apply replaces the working order set for a
// pair; venues that fill immediately report Executed.
type Adapter interface {
	Name() string
	Apply(ctx context.Context, assetPairID string, orders []model.LimitOrder) ([]OrderReport, error)
	Cancel(ctx context.Context, assetPairID string) error
	Balances(ctx context.Context) ([]model.Balance, error)
}

// Registry resolves adapters by venue name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for a venue name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
	return a, nil
}

// All returns every registered adapter.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
