// Package balance caches the available funds per venue and asset. The
// quoting loop reads balances on every index update, so it must never
// block on a venue call; a timer refreshes the cache in the background.
package balance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/exchange"
	"github.com/indexlab/hedging-engine/internal/model"
)

type key struct {
	exchange string
	assetID  string
}

// Service holds the last known balances for every registered venue.
type Service struct {
	registry *exchange.Registry
	logger   *slog.Logger

	mu       sync.RWMutex
	balances map[key]model.Balance
}

// NewService creates a balance service over the venue registry.
func NewService(registry *exchange.Registry, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		logger:   logger,
		balances: make(map[key]model.Balance),
	}
}

// Refresh pulls balances from every venue. Venues that fail keep their
// previous snapshot; quoting should not halt because one venue timed out.
func (s *Service) Refresh(ctx context.Context) {
	for _, adapter := range s.registry.All() {
		balances, err := adapter.Balances(ctx)
		if err != nil {
			s.logger.Warn("balance refresh failed",
				"exchange", adapter.Name(), "error", err)
			continue
		}
		s.mu.Lock()
		for _, b := range balances {
			s.balances[key{b.Exchange, b.AssetID}] = b
		}
		s.mu.Unlock()
	}
}

// Available returns the unreserved amount of an asset on a venue. Unknown
// balances are zero, which makes the order builder mark orders as
// NotEnoughFunds rather than over-commit.
func (s *Service) Available(exchangeName, assetID string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[key{exchangeName, assetID}]
	if !ok {
		return decimal.Zero
	}
	return decimal.Max(b.Amount.Sub(b.Reserved), decimal.Zero)
}

// All returns a snapshot of every cached balance.
func (s *Service) All() []model.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		out = append(out, b)
	}
	return out
}

// Set overrides one balance. Used by tests and by the admin API to seed
// balances for venues without a balance endpoint.
func (s *Service) Set(b model.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[key{b.Exchange, b.AssetID}] = b
}
