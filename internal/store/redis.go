package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/indexlab/hedging-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the settings the quoting loop reads on every index update.
// Writes go to the primary store and invalidate the cache; reads check
// Redis first then fall back to the primary. Trades and positions are
// never cached.
type CachedStore struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store: primary,
		rdb:   rdb,
		ttl:   ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetIndexSettings(ctx context.Context, name string) (*model.IndexSettings, error) {
	var v model.IndexSettings
	if s.lookup(ctx, indexSettingsKey(name), &v) {
		return &v, nil
	}
	out, err := s.Store.GetIndexSettings(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, indexSettingsKey(name), out)
	return out, nil
}

func (s *CachedStore) GetAssetPairSettings(ctx context.Context, exchange, assetPairID string) (*model.AssetPairSettings, error) {
	var v model.AssetPairSettings
	if s.lookup(ctx, assetPairKey(exchange, assetPairID), &v) {
		return &v, nil
	}
	out, err := s.Store.GetAssetPairSettings(ctx, exchange, assetPairID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, assetPairKey(exchange, assetPairID), out)
	return out, nil
}

func (s *CachedStore) GetAssetSettings(ctx context.Context, exchange, assetID string) (*model.AssetSettings, error) {
	var v model.AssetSettings
	if s.lookup(ctx, assetKey(exchange, assetID), &v) {
		return &v, nil
	}
	out, err := s.Store.GetAssetSettings(ctx, exchange, assetID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, assetKey(exchange, assetID), out)
	return out, nil
}

func (s *CachedStore) GetAssetHedgeSettings(ctx context.Context, assetID string) (*model.AssetHedgeSettings, error) {
	var v model.AssetHedgeSettings
	if s.lookup(ctx, assetHedgeKey(assetID), &v) {
		return &v, nil
	}
	out, err := s.Store.GetAssetHedgeSettings(ctx, assetID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, assetHedgeKey(assetID), out)
	return out, nil
}

func (s *CachedStore) GetHedgeSettings(ctx context.Context) (*model.HedgeSettings, error) {
	var v model.HedgeSettings
	if s.lookup(ctx, hedgeSettingsKey, &v) {
		return &v, nil
	}
	out, err := s.Store.GetHedgeSettings(ctx)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, hedgeSettingsKey, out)
	return out, nil
}

// --- Invalidating writes ---

func (s *CachedStore) UpsertIndexSettings(ctx context.Context, settings model.IndexSettings) error {
	if err := s.Store.UpsertIndexSettings(ctx, settings); err != nil {
		return err
	}
	s.rdb.Del(ctx, indexSettingsKey(settings.Name))
	return nil
}

func (s *CachedStore) DeleteIndexSettings(ctx context.Context, name string) error {
	if err := s.Store.DeleteIndexSettings(ctx, name); err != nil {
		return err
	}
	s.rdb.Del(ctx, indexSettingsKey(name))
	return nil
}

func (s *CachedStore) UpsertAssetPairSettings(ctx context.Context, settings model.AssetPairSettings) error {
	if err := s.Store.UpsertAssetPairSettings(ctx, settings); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetPairKey(settings.Exchange, settings.AssetPairID))
	return nil
}

func (s *CachedStore) DeleteAssetPairSettings(ctx context.Context, exchange, assetPairID string) error {
	if err := s.Store.DeleteAssetPairSettings(ctx, exchange, assetPairID); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetPairKey(exchange, assetPairID))
	return nil
}

func (s *CachedStore) UpsertAssetSettings(ctx context.Context, settings model.AssetSettings) error {
	if err := s.Store.UpsertAssetSettings(ctx, settings); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetKey(settings.Exchange, settings.AssetID))
	return nil
}

func (s *CachedStore) DeleteAssetSettings(ctx context.Context, exchange, assetID string) error {
	if err := s.Store.DeleteAssetSettings(ctx, exchange, assetID); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetKey(exchange, assetID))
	return nil
}

func (s *CachedStore) UpsertAssetHedgeSettings(ctx context.Context, settings model.AssetHedgeSettings) error {
	if err := s.Store.UpsertAssetHedgeSettings(ctx, settings); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetHedgeKey(settings.AssetID))
	return nil
}

func (s *CachedStore) DeleteAssetHedgeSettings(ctx context.Context, assetID string) error {
	if err := s.Store.DeleteAssetHedgeSettings(ctx, assetID); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetHedgeKey(assetID))
	return nil
}

func (s *CachedStore) PutHedgeSettings(ctx context.Context, settings model.HedgeSettings) error {
	if err := s.Store.PutHedgeSettings(ctx, settings); err != nil {
		return err
	}
	s.rdb.Del(ctx, hedgeSettingsKey)
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) lookup(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *CachedStore) cache(ctx context.Context, key string, value interface{}) {
	if data, err := json.Marshal(value); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const hedgeSettingsKey = "settings:hedge"

func indexSettingsKey(name string) string { return fmt.Sprintf("settings:index:%s", name) }

func assetPairKey(exchange, id string) string {
	return fmt.Sprintf("settings:pair:%s:%s", exchange, id)
}

func assetKey(exchange, id string) string {
	return fmt.Sprintf("settings:asset:%s:%s", exchange, id)
}

func assetHedgeKey(id string) string { return fmt.Sprintf("settings:hedge-asset:%s", id) }
