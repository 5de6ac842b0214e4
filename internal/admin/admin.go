// Package admin exposes the operator HTTP surface: CRUD over every
// settings resource plus read access to positions, trades, orders, and
// balances. Mutating calls record the operator id from X-User-ID.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/indexlab/hedging-engine/internal/balance"
	"github.com/indexlab/hedging-engine/internal/engine"
	"github.com/indexlab/hedging-engine/internal/hedge"
	"github.com/indexlab/hedging-engine/internal/model"
	"github.com/indexlab/hedging-engine/internal/store"
)

// Service handles the admin API.
type Service struct {
	store       store.Store
	coordinator *engine.Coordinator
	balances    *balance.Service
	logger      *slog.Logger
}

// NewService creates the admin service.
func NewService(st store.Store, coordinator *engine.Coordinator, balances *balance.Service, logger *slog.Logger) *Service {
	return &Service{store: st, coordinator: coordinator, balances: balances, logger: logger}
}

// Routes mounts every admin resource on the router.
func (s *Service) Routes(r chi.Router) {
	r.Route("/indices", func(r chi.Router) {
		r.Get("/", s.listIndexSettings)
		r.Put("/", s.upsertIndexSettings)
		r.Get("/{name}", s.getIndexSettings)
		r.Delete("/{name}", s.deleteIndexSettings)
		r.Get("/{name}/price", s.getIndexPrice)
		r.Get("/{name}/orders", s.getLimitOrders)
		r.Post("/{name}/cancel", s.cancelLimitOrders)
	})
	r.Get("/prices", s.listIndexPrices)

	r.Route("/asset-pairs", func(r chi.Router) {
		r.Get("/", s.listAssetPairs)
		r.Put("/", s.upsertAssetPair)
		r.Delete("/{exchange}/{assetPairID}", s.deleteAssetPair)
	})
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", s.listAssets)
		r.Put("/", s.upsertAsset)
		r.Delete("/{exchange}/{assetID}", s.deleteAsset)
	})
	r.Route("/asset-links", func(r chi.Router) {
		r.Get("/", s.listAssetLinks)
		r.Put("/", s.upsertAssetLink)
		r.Delete("/{externalAssetID}", s.deleteAssetLink)
	})
	r.Route("/asset-hedge-settings", func(r chi.Router) {
		r.Get("/", s.listAssetHedgeSettings)
		r.Put("/", s.upsertAssetHedgeSettings)
		r.Delete("/{assetID}", s.deleteAssetHedgeSettings)
	})
	r.Route("/cross-asset-pairs", func(r chi.Router) {
		r.Get("/", s.listCrossAssetPairs)
		r.Put("/", s.upsertCrossAssetPair)
		r.Delete("/{id}", s.deleteCrossAssetPair)
	})

	r.Get("/hedge-settings", s.getHedgeSettings)
	r.Put("/hedge-settings", s.putHedgeSettings)
	r.Get("/timer-settings", s.getTimerSettings)
	r.Put("/timer-settings", s.putTimerSettings)
	r.Get("/state", s.getState)
	r.Put("/state", s.putState)

	r.Get("/positions/tokens", s.listTokenPositions)
	r.Get("/positions/hedge", s.listHedgePositions)
	r.Get("/trades/internal", s.listInternalTrades)
	r.Get("/trades/external", s.listExternalTrades)
	r.Get("/balances", s.listBalances)
}

// --- index settings ---

func (s *Service) listIndexSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListIndexSettings(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(all))
}

func (s *Service) getIndexSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetIndexSettings(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "index not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

func (s *Service) upsertIndexSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.IndexSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if settings.Name == "" || settings.AssetID == "" || settings.AssetPairID == "" {
		writeError(w, "name, asset_id and asset_pair_id are required", http.StatusBadRequest)
		return
	}
	if settings.BuyLimitOrdersCount < 1 || settings.SellLimitOrdersCount < 1 {
		writeError(w, "limit order counts must be at least 1", http.StatusBadRequest)
		return
	}
	if err := s.store.UpsertIndexSettings(r.Context(), settings); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "index settings updated", "index", settings.Name)
	writeJSON(w, settings)
}

func (s *Service) deleteIndexSettings(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.DeleteIndexSettings(r.Context(), name); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "index settings deleted", "index", name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) getIndexPrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.store.GetIndexPrice(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no price for index", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, price)
}

func (s *Service) listIndexPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.ListIndexPrices(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(prices))
}

func (s *Service) getLimitOrders(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetIndexSettings(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "index not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	limitOrders, err := s.store.GetLimitOrders(r.Context(), settings.AssetPairID)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(limitOrders))
}

func (s *Service) cancelLimitOrders(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.coordinator.CancelLimitOrders(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "index not found", http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.audit(r, "limit orders cancelled", "index", name)
	w.WriteHeader(http.StatusNoContent)
}

// --- asset pairs / assets / links ---

func (s *Service) listAssetPairs(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListAssetPairSettings(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(all))
}

func (s *Service) upsertAssetPair(w http.ResponseWriter, r *http.Request) {
	var settings model.AssetPairSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if settings.AssetPairID == "" || settings.Exchange == "" {
		writeError(w, "asset_pair_id and exchange are required", http.StatusBadRequest)
		return
	}
	if err := s.store.UpsertAssetPairSettings(r.Context(), settings); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset pair updated", "exchange", settings.Exchange, "asset_pair_id", settings.AssetPairID)
	writeJSON(w, settings)
}

func (s *Service) deleteAssetPair(w http.ResponseWriter, r *http.Request) {
	exchange := chi.URLParam(r, "exchange")
	assetPairID := chi.URLParam(r, "assetPairID")
	if err := s.store.DeleteAssetPairSettings(r.Context(), exchange, assetPairID); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset pair deleted", "exchange", exchange, "asset_pair_id", assetPairID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) listAssets(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListAssetSettings(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(all))
}

func (s *Service) upsertAsset(w http.ResponseWriter, r *http.Request) {
	var settings model.AssetSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if settings.AssetID == "" || settings.Exchange == "" {
		writeError(w, "asset_id and exchange are required", http.StatusBadRequest)
		return
	}
	if err := s.store.UpsertAssetSettings(r.Context(), settings); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset updated", "exchange", settings.Exchange, "asset_id", settings.AssetID)
	writeJSON(w, settings)
}

func (s *Service) deleteAsset(w http.ResponseWriter, r *http.Request) {
	exchange := chi.URLParam(r, "exchange")
	assetID := chi.URLParam(r, "assetID")
	if err := s.store.DeleteAssetSettings(r.Context(), exchange, assetID); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset deleted", "exchange", exchange, "asset_id", assetID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) listAssetLinks(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListAssetLinks(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(all))
}

func (s *Service) upsertAssetLink(w http.ResponseWriter, r *http.Request) {
	var link model.AssetLink
	if err := json.NewDecoder(r.Body).Decode(&link); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if link.ExternalAssetID == "" || link.InternalAssetID == "" {
		writeError(w, "both asset ids are required", http.StatusBadRequest)
		return
	}
	if err := s.store.UpsertAssetLink(r.Context(), link); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset link updated", "external", link.ExternalAssetID, "internal", link.InternalAssetID)
	writeJSON(w, link)
}

func (s *Service) deleteAssetLink(w http.ResponseWriter, r *http.Request) {
	externalAssetID := chi.URLParam(r, "externalAssetID")
	if err := s.store.DeleteAssetLink(r.Context(), externalAssetID); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset link deleted", "external", externalAssetID)
	w.WriteHeader(http.StatusNoContent)
}

// --- hedge configuration ---

func (s *Service) listAssetHedgeSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListAssetHedgeSettings(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(all))
}

func (s *Service) upsertAssetHedgeSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.AssetHedgeSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if settings.AssetID == "" {
		writeError(w, "asset_id is required", http.StatusBadRequest)
		return
	}
	switch settings.Mode {
	case model.HedgeModeIdle, model.HedgeModeManual, model.HedgeModeAuto:
	default:
		writeError(w, "mode must be Idle, Manual or Auto", http.StatusBadRequest)
		return
	}
	if settings.Approved && (settings.Exchange == "" || settings.AssetPairID == "") {
		writeError(w, "approved settings need exchange and asset_pair_id", http.StatusBadRequest)
		return
	}
	if err := s.store.UpsertAssetHedgeSettings(r.Context(), settings); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset hedge settings updated",
		"asset_id", settings.AssetID, "approved", settings.Approved, "mode", settings.Mode)
	writeJSON(w, settings)
}

func (s *Service) deleteAssetHedgeSettings(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	if err := s.store.DeleteAssetHedgeSettings(r.Context(), assetID); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "asset hedge settings deleted", "asset_id", assetID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) getHedgeSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetHedgeSettings(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "hedge settings not configured", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

func (s *Service) putHedgeSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.HedgeSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := hedge.ValidateSettings(settings); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.PutHedgeSettings(r.Context(), settings); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "hedge settings updated")
	writeJSON(w, settings)
}

// --- cross asset pairs ---

func (s *Service) listCrossAssetPairs(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListCrossAssetPairs(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(all))
}

func (s *Service) upsertCrossAssetPair(w http.ResponseWriter, r *http.Request) {
	var settings model.CrossAssetPairSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if settings.BaseAssetPairID == "" || settings.CrossAssetPairID == "" {
		writeError(w, "both asset pair ids are required", http.StatusBadRequest)
		return
	}
	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}
	if err := s.store.UpsertCrossAssetPair(r.Context(), settings); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "cross asset pair updated", "id", settings.ID)
	writeJSON(w, settings)
}

func (s *Service) deleteCrossAssetPair(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteCrossAssetPair(r.Context(), id); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "cross asset pair deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// --- timers and state ---

func (s *Service) getTimerSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetTimerSettings(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, model.TimerSettings{
			BalanceRefresh: engine.DefaultBalanceRefresh,
			HedgeCycle:     engine.DefaultHedgeCycle,
			QuoteMaxAge:    engine.DefaultQuoteMaxAge,
		})
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

func (s *Service) putTimerSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.TimerSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if settings.BalanceRefresh <= 0 || settings.HedgeCycle <= 0 || settings.QuoteMaxAge <= 0 {
		writeError(w, "all intervals must be positive", http.StatusBadRequest)
		return
	}
	if err := s.store.PutTimerSettings(r.Context(), settings); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "timer settings updated")
	writeJSON(w, settings)
}

func (s *Service) getState(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.GetMarketMakerState(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, model.MarketMakerState{Status: model.StatusDisabled})
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, state)
}

type stateRequest struct {
	Status model.MarketMakerStatus `json:"status"`
	Reason string                  `json:"reason"`
}

func (s *Service) putState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status != model.StatusActive && req.Status != model.StatusDisabled {
		writeError(w, "status must be Active or Disabled", http.StatusBadRequest)
		return
	}

	state := model.MarketMakerState{
		Status:    req.Status,
		Timestamp: time.Now().UTC(),
		Reason:    req.Reason,
		UserID:    r.Header.Get("X-User-ID"),
	}
	if err := s.coordinator.SetState(r.Context(), state); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.audit(r, "market maker state changed", "status", req.Status, "reason", req.Reason)
	writeJSON(w, state)
}

// --- read-only resources ---

func (s *Service) listTokenPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListTokenPositions(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(positions))
}

func (s *Service) listHedgePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListHedgePositions(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(positions))
}

func (s *Service) listInternalTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListInternalTrades(r.Context(),
		r.URL.Query().Get("asset_pair_id"), queryLimit(r))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(trades))
}

func (s *Service) listExternalTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListExternalTrades(r.Context(),
		r.URL.Query().Get("exchange"), queryLimit(r))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, emptyIfNil(trades))
}

func (s *Service) listBalances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, emptyIfNil(s.balances.All()))
}

// --- helpers ---

func (s *Service) audit(r *http.Request, msg string, args ...any) {
	args = append(args, "user_id", r.Header.Get("X-User-ID"))
	s.logger.Info(msg, args...)
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// emptyIfNil keeps list endpoints returning [] instead of null.
func emptyIfNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
