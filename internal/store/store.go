// Package store defines the persistence interface for the hedging engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for settings), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/indexlab/hedging-engine/internal/model"
)

// ErrNotFound is returned when a keyed entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. Settings follow last-writer-wins;
// trades are append-only and persisted transactionally with the position
// they update.
type Store interface {
	// --- Index settings ---

	ListIndexSettings(ctx context.Context) ([]model.IndexSettings, error)
	GetIndexSettings(ctx context.Context, name string) (*model.IndexSettings, error)
	UpsertIndexSettings(ctx context.Context, settings model.IndexSettings) error
	DeleteIndexSettings(ctx context.Context, name string) error

	// --- Asset pair settings, keyed by (exchange, pair) ---

	ListAssetPairSettings(ctx context.Context) ([]model.AssetPairSettings, error)
	GetAssetPairSettings(ctx context.Context, exchange, assetPairID string) (*model.AssetPairSettings, error)
	UpsertAssetPairSettings(ctx context.Context, settings model.AssetPairSettings) error
	DeleteAssetPairSettings(ctx context.Context, exchange, assetPairID string) error

	// --- Asset settings, keyed by (exchange, asset) ---

	ListAssetSettings(ctx context.Context) ([]model.AssetSettings, error)
	GetAssetSettings(ctx context.Context, exchange, assetID string) (*model.AssetSettings, error)
	UpsertAssetSettings(ctx context.Context, settings model.AssetSettings) error
	DeleteAssetSettings(ctx context.Context, exchange, assetID string) error

	// --- Asset links (external symbol -> internal asset) ---

	ListAssetLinks(ctx context.Context) ([]model.AssetLink, error)
	GetAssetLink(ctx context.Context, externalAssetID string) (*model.AssetLink, error)
	UpsertAssetLink(ctx context.Context, link model.AssetLink) error
	DeleteAssetLink(ctx context.Context, externalAssetID string) error

	// --- Asset hedge settings, keyed by asset ---

	ListAssetHedgeSettings(ctx context.Context) ([]model.AssetHedgeSettings, error)
	GetAssetHedgeSettings(ctx context.Context, assetID string) (*model.AssetHedgeSettings, error)
	UpsertAssetHedgeSettings(ctx context.Context, settings model.AssetHedgeSettings) error
	DeleteAssetHedgeSettings(ctx context.Context, assetID string) error

	// --- Singletons ---

	GetHedgeSettings(ctx context.Context) (*model.HedgeSettings, error)
	PutHedgeSettings(ctx context.Context, settings model.HedgeSettings) error

	GetMarketMakerState(ctx context.Context) (*model.MarketMakerState, error)
	PutMarketMakerState(ctx context.Context, state model.MarketMakerState) error

	GetTimerSettings(ctx context.Context) (*model.TimerSettings, error)
	PutTimerSettings(ctx context.Context, settings model.TimerSettings) error

	// --- Index prices (running K + weight snapshot) ---

	ListIndexPrices(ctx context.Context) ([]model.IndexPrice, error)
	GetIndexPrice(ctx context.Context, name string) (*model.IndexPrice, error)
	PutIndexPrice(ctx context.Context, price model.IndexPrice) error

	// --- Latest limit-order set per pair (observability) ---

	PutLimitOrders(ctx context.Context, assetPairID string, limitOrders []model.LimitOrder) error
	GetLimitOrders(ctx context.Context, assetPairID string) ([]model.LimitOrder, error)

	// --- Positions ---

	ListTokenPositions(ctx context.Context) ([]model.TokenPosition, error)
	GetTokenPosition(ctx context.Context, assetID string) (*model.TokenPosition, error)

	ListHedgePositions(ctx context.Context) ([]model.HedgePosition, error)
	GetHedgePosition(ctx context.Context, assetID string) (*model.HedgePosition, error)

	// --- Trades; each insert persists the updated position atomically ---

	InsertInternalTrade(ctx context.Context, trade model.InternalTrade, position model.TokenPosition) error
	ListInternalTrades(ctx context.Context, assetPairID string, limit int) ([]model.InternalTrade, error)

	InsertExternalTrade(ctx context.Context, trade model.ExternalTrade, position model.HedgePosition) error
	ListExternalTrades(ctx context.Context, exchange string, limit int) ([]model.ExternalTrade, error)

	// --- Cross asset pairs ---

	ListCrossAssetPairs(ctx context.Context) ([]model.CrossAssetPairSettings, error)
	UpsertCrossAssetPair(ctx context.Context, settings model.CrossAssetPairSettings) error
	DeleteCrossAssetPair(ctx context.Context, id string) error
}
