// Package instrument resolves venue instrument metadata: asset and
// asset-pair settings, cross-venue asset links, and the per-asset hedge
// approvals derived from index constituents.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/indexlab/hedging-engine/internal/model"
	"github.com/indexlab/hedging-engine/internal/store"
)

var (
	ErrUnknownAssetPair = errors.New("instrument: unknown asset pair")
	ErrUnknownAsset     = errors.New("instrument: unknown asset")
)

// Service answers instrument lookups for the quoting and hedging paths.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// NewService creates an instrument service.
func NewService(st store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// AssetPair returns the pair settings for a venue, or ErrUnknownAssetPair.
func (s *Service) AssetPair(ctx context.Context, exchange, assetPairID string) (*model.AssetPairSettings, error) {
	pair, err := s.store.GetAssetPairSettings(ctx, exchange, assetPairID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownAssetPair, assetPairID, exchange)
	}
	return pair, err
}

// Asset returns the asset settings for a venue, or ErrUnknownAsset.
func (s *Service) Asset(ctx context.Context, exchange, assetID string) (*model.AssetSettings, error) {
	asset, err := s.store.GetAssetSettings(ctx, exchange, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownAsset, assetID, exchange)
	}
	return asset, err
}

// ResolveAsset maps an external venue's asset identifier to the internal
// one. Unlinked identifiers pass through unchanged.
func (s *Service) ResolveAsset(ctx context.Context, externalAssetID string) (string, error) {
	link, err := s.store.GetAssetLink(ctx, externalAssetID)
	if errors.Is(err, store.ErrNotFound) {
		return externalAssetID, nil
	}
	if err != nil {
		return "", err
	}
	return link.InternalAssetID, nil
}

// EnsureHedgeSettings creates a disabled AssetHedgeSettings entry for any
// constituent asset that does not have one yet. New assets start
// unapproved and idle so no hedge order is placed until an operator
// reviews them. Returns the settings for every weight, existing or new.
func (s *Service) EnsureHedgeSettings(ctx context.Context, weights []model.AssetWeight) ([]model.AssetHedgeSettings, error) {
	out := make([]model.AssetHedgeSettings, 0, len(weights))
	for _, w := range weights {
		settings, err := s.store.GetAssetHedgeSettings(ctx, w.AssetID)
		if errors.Is(err, store.ErrNotFound) {
			created := model.AssetHedgeSettings{
				AssetID:  w.AssetID,
				Approved: false,
				Mode:     model.HedgeModeIdle,
			}
			if err := s.store.UpsertAssetHedgeSettings(ctx, created); err != nil {
				return nil, fmt.Errorf("create hedge settings for %s: %w", w.AssetID, err)
			}
			s.logger.Info("created hedge settings for new constituent",
				"asset_id", w.AssetID)
			out = append(out, created)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *settings)
	}
	return out, nil
}

// Hedgeable reports whether the hedge engine may place orders for an
// asset: the settings must be approved and in Auto mode.
func Hedgeable(settings model.AssetHedgeSettings) bool {
	return settings.Approved && settings.Mode == model.HedgeModeAuto
}
