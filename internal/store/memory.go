package store

import (
	"context"
	"sort"
	"sync"

	"github.com/indexlab/hedging-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu sync.RWMutex

	indexSettings     map[string]model.IndexSettings
	assetPairSettings map[string]model.AssetPairSettings
	assetSettings     map[string]model.AssetSettings
	assetLinks        map[string]model.AssetLink
	assetHedge        map[string]model.AssetHedgeSettings
	crossPairs        map[string]model.CrossAssetPairSettings

	hedgeSettings *model.HedgeSettings
	mmState       *model.MarketMakerState
	timerSettings *model.TimerSettings

	indexPrices    map[string]model.IndexPrice
	limitOrders    map[string][]model.LimitOrder
	tokenPositions map[string]model.TokenPosition
	hedgePositions map[string]model.HedgePosition
	internalTrades []model.InternalTrade
	externalTrades []model.ExternalTrade
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		indexSettings:     make(map[string]model.IndexSettings),
		assetPairSettings: make(map[string]model.AssetPairSettings),
		assetSettings:     make(map[string]model.AssetSettings),
		assetLinks:        make(map[string]model.AssetLink),
		assetHedge:        make(map[string]model.AssetHedgeSettings),
		crossPairs:        make(map[string]model.CrossAssetPairSettings),
		indexPrices:       make(map[string]model.IndexPrice),
		limitOrders:       make(map[string][]model.LimitOrder),
		tokenPositions:    make(map[string]model.TokenPosition),
		hedgePositions:    make(map[string]model.HedgePosition),
	}
}

func pairKey(exchange, id string) string { return exchange + "/" + id }

// --- Index settings ---

func (s *MemoryStore) ListIndexSettings(_ context.Context) ([]model.IndexSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.IndexSettings, 0, len(s.indexSettings))
	for _, v := range s.indexSettings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetIndexSettings(_ context.Context, name string) (*model.IndexSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.indexSettings[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) UpsertIndexSettings(_ context.Context, settings model.IndexSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexSettings[settings.Name] = settings
	return nil
}

func (s *MemoryStore) DeleteIndexSettings(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexSettings, name)
	return nil
}

// --- Asset pair settings ---

func (s *MemoryStore) ListAssetPairSettings(_ context.Context) ([]model.AssetPairSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AssetPairSettings, 0, len(s.assetPairSettings))
	for _, v := range s.assetPairSettings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return pairKey(out[i].Exchange, out[i].AssetPairID) < pairKey(out[j].Exchange, out[j].AssetPairID)
	})
	return out, nil
}

func (s *MemoryStore) GetAssetPairSettings(_ context.Context, exchange, assetPairID string) (*model.AssetPairSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.assetPairSettings[pairKey(exchange, assetPairID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) UpsertAssetPairSettings(_ context.Context, settings model.AssetPairSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetPairSettings[pairKey(settings.Exchange, settings.AssetPairID)] = settings
	return nil
}

func (s *MemoryStore) DeleteAssetPairSettings(_ context.Context, exchange, assetPairID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assetPairSettings, pairKey(exchange, assetPairID))
	return nil
}

// --- Asset settings ---

func (s *MemoryStore) ListAssetSettings(_ context.Context) ([]model.AssetSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AssetSettings, 0, len(s.assetSettings))
	for _, v := range s.assetSettings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return pairKey(out[i].Exchange, out[i].AssetID) < pairKey(out[j].Exchange, out[j].AssetID)
	})
	return out, nil
}

func (s *MemoryStore) GetAssetSettings(_ context.Context, exchange, assetID string) (*model.AssetSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.assetSettings[pairKey(exchange, assetID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) UpsertAssetSettings(_ context.Context, settings model.AssetSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetSettings[pairKey(settings.Exchange, settings.AssetID)] = settings
	return nil
}

func (s *MemoryStore) DeleteAssetSettings(_ context.Context, exchange, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assetSettings, pairKey(exchange, assetID))
	return nil
}

// --- Asset links ---

func (s *MemoryStore) ListAssetLinks(_ context.Context) ([]model.AssetLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AssetLink, 0, len(s.assetLinks))
	for _, v := range s.assetLinks {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalAssetID < out[j].ExternalAssetID })
	return out, nil
}

func (s *MemoryStore) GetAssetLink(_ context.Context, externalAssetID string) (*model.AssetLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.assetLinks[externalAssetID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) UpsertAssetLink(_ context.Context, link model.AssetLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetLinks[link.ExternalAssetID] = link
	return nil
}

func (s *MemoryStore) DeleteAssetLink(_ context.Context, externalAssetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assetLinks, externalAssetID)
	return nil
}

// --- Asset hedge settings ---

func (s *MemoryStore) ListAssetHedgeSettings(_ context.Context) ([]model.AssetHedgeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AssetHedgeSettings, 0, len(s.assetHedge))
	for _, v := range s.assetHedge {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

func (s *MemoryStore) GetAssetHedgeSettings(_ context.Context, assetID string) (*model.AssetHedgeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.assetHedge[assetID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) UpsertAssetHedgeSettings(_ context.Context, settings model.AssetHedgeSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetHedge[settings.AssetID] = settings
	return nil
}

func (s *MemoryStore) DeleteAssetHedgeSettings(_ context.Context, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assetHedge, assetID)
	return nil
}

// --- Singletons ---

func (s *MemoryStore) GetHedgeSettings(_ context.Context) (*model.HedgeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.hedgeSettings == nil {
		return nil, ErrNotFound
	}
	v := *s.hedgeSettings
	return &v, nil
}

func (s *MemoryStore) PutHedgeSettings(_ context.Context, settings model.HedgeSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hedgeSettings = &settings
	return nil
}

func (s *MemoryStore) GetMarketMakerState(_ context.Context) (*model.MarketMakerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.mmState == nil {
		return nil, ErrNotFound
	}
	v := *s.mmState
	return &v, nil
}

func (s *MemoryStore) PutMarketMakerState(_ context.Context, state model.MarketMakerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mmState = &state
	return nil
}

func (s *MemoryStore) GetTimerSettings(_ context.Context) (*model.TimerSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.timerSettings == nil {
		return nil, ErrNotFound
	}
	v := *s.timerSettings
	return &v, nil
}

func (s *MemoryStore) PutTimerSettings(_ context.Context, settings model.TimerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerSettings = &settings
	return nil
}

// --- Index prices ---

func (s *MemoryStore) ListIndexPrices(_ context.Context) ([]model.IndexPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.IndexPrice, 0, len(s.indexPrices))
	for _, v := range s.indexPrices {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetIndexPrice(_ context.Context, name string) (*model.IndexPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.indexPrices[name]
	if !ok {
		return nil, ErrNotFound
	}
	v.Weights = append([]model.AssetWeight(nil), v.Weights...)
	return &v, nil
}

func (s *MemoryStore) PutIndexPrice(_ context.Context, price model.IndexPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	price.Weights = append([]model.AssetWeight(nil), price.Weights...)
	s.indexPrices[price.Name] = price
	return nil
}

// --- Limit orders ---

func (s *MemoryStore) PutLimitOrders(_ context.Context, assetPairID string, limitOrders []model.LimitOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limitOrders[assetPairID] = append([]model.LimitOrder(nil), limitOrders...)
	return nil
}

func (s *MemoryStore) GetLimitOrders(_ context.Context, assetPairID string) ([]model.LimitOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LimitOrder(nil), s.limitOrders[assetPairID]...), nil
}

// --- Positions ---

func (s *MemoryStore) ListTokenPositions(_ context.Context) ([]model.TokenPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TokenPosition, 0, len(s.tokenPositions))
	for _, v := range s.tokenPositions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

func (s *MemoryStore) GetTokenPosition(_ context.Context, assetID string) (*model.TokenPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.tokenPositions[assetID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) ListHedgePositions(_ context.Context) ([]model.HedgePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.HedgePosition, 0, len(s.hedgePositions))
	for _, v := range s.hedgePositions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

func (s *MemoryStore) GetHedgePosition(_ context.Context, assetID string) (*model.HedgePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.hedgePositions[assetID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

// --- Trades ---

func (s *MemoryStore) InsertInternalTrade(_ context.Context, trade model.InternalTrade, position model.TokenPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internalTrades = append(s.internalTrades, trade)
	s.tokenPositions[position.AssetID] = position
	return nil
}

func (s *MemoryStore) ListInternalTrades(_ context.Context, assetPairID string, limit int) ([]model.InternalTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.InternalTrade
	for i := len(s.internalTrades) - 1; i >= 0; i-- {
		t := s.internalTrades[i]
		if assetPairID != "" && t.AssetPairID != assetPairID {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertExternalTrade(_ context.Context, trade model.ExternalTrade, position model.HedgePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalTrades = append(s.externalTrades, trade)
	s.hedgePositions[position.AssetID] = position
	return nil
}

func (s *MemoryStore) ListExternalTrades(_ context.Context, exchange string, limit int) ([]model.ExternalTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ExternalTrade
	for i := len(s.externalTrades) - 1; i >= 0; i-- {
		t := s.externalTrades[i]
		if exchange != "" && t.Exchange != exchange {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- Cross asset pairs ---

func (s *MemoryStore) ListCrossAssetPairs(_ context.Context) ([]model.CrossAssetPairSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CrossAssetPairSettings, 0, len(s.crossPairs))
	for _, v := range s.crossPairs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertCrossAssetPair(_ context.Context, settings model.CrossAssetPairSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crossPairs[settings.ID] = settings
	return nil
}

func (s *MemoryStore) DeleteCrossAssetPair(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.crossPairs, id)
	return nil
}
