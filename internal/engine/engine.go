// Package engine coordinates the quoting and hedging cycles. A single
// mutex serializes the two entry points (index updates and internal
// trade batches) plus the periodic hedge cycle, so no two cycles ever
// observe half-updated positions. Blocking on I/O while holding the
// lock is expected.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/balance"
	"github.com/indexlab/hedging-engine/internal/dedup"
	"github.com/indexlab/hedging-engine/internal/exchange"
	"github.com/indexlab/hedging-engine/internal/hedge"
	"github.com/indexlab/hedging-engine/internal/instrument"
	"github.com/indexlab/hedging-engine/internal/ledger"
	"github.com/indexlab/hedging-engine/internal/metrics"
	"github.com/indexlab/hedging-engine/internal/model"
	"github.com/indexlab/hedging-engine/internal/orders"
	"github.com/indexlab/hedging-engine/internal/pricing"
	"github.com/indexlab/hedging-engine/internal/quote"
	"github.com/indexlab/hedging-engine/internal/store"
	"github.com/indexlab/hedging-engine/internal/trace"
)

// Default timer values used until TimerSettings is configured.
const (
	DefaultBalanceRefresh = 10 * time.Second
	DefaultHedgeCycle     = 10 * time.Second
	DefaultQuoteMaxAge    = 30 * time.Second
)

// Tracer receives engine events for the monitoring feed. *trace.Hub
// satisfies it.
type Tracer interface {
	Broadcast(event trace.Event)
}

// NopTracer discards events.
type NopTracer struct{}

func (NopTracer) Broadcast(trace.Event) {}

// Coordinator owns the core mutex and drives every cycle.
type Coordinator struct {
	mu sync.Mutex

	store       store.Store
	instruments *instrument.Service
	balances    *balance.Service
	quotes      *quote.Cache
	registry    *exchange.Registry
	oracle      dedup.Oracle
	tracer      Tracer
	logger      *slog.Logger
	walletID    string
}

// Config wires a Coordinator. All fields are required; pass NopTracer
// when no trace feed is attached.
type Config struct {
	Store       store.Store
	Instruments *instrument.Service
	Balances    *balance.Service
	Quotes      *quote.Cache
	Registry    *exchange.Registry
	Oracle      dedup.Oracle
	Tracer      Tracer
	Logger      *slog.Logger
	WalletID    string
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		store:       cfg.Store,
		instruments: cfg.Instruments,
		balances:    cfg.Balances,
		quotes:      cfg.Quotes,
		registry:    cfg.Registry,
		oracle:      cfg.Oracle,
		tracer:      cfg.Tracer,
		logger:      cfg.Logger,
		walletID:    cfg.WalletID,
	}
}

// HandleIndex runs one full quoting cycle for an inbound index update,
// then re-evaluates hedges. Errors are logged against the update and
// never propagate to the bus layer.
func (c *Coordinator) HandleIndex(ctx context.Context, index model.Index) {
	start := time.Now()

	if !c.active(ctx) {
		metrics.IndexUpdatesTotal.WithLabelValues(index.Name, "disabled").Inc()
		return
	}

	if err := pricing.Validate(index); err != nil {
		c.logger.Warn("index update rejected",
			"index", index.Name, "value", index.Value, "error", err)
		metrics.IndexUpdatesTotal.WithLabelValues(index.Name, "rejected").Inc()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	price, err := c.updatePrice(ctx, index)
	if err != nil {
		c.logger.Error("index price update failed",
			"index", index.Name, "value", index.Value, "error", err)
		metrics.IndexUpdatesTotal.WithLabelValues(index.Name, "error").Inc()
		return
	}

	c.tracer.Broadcast(trace.Event{
		Type:      trace.EventIndexPrice,
		IndexName: index.Name,
		Price:     price.Price.String(),
		Timestamp: price.Timestamp,
	})

	outcome := "ok"
	if err := c.quoteIndex(ctx, price); err != nil {
		c.logger.Error("quoting cycle failed",
			"index", index.Name, "error", err)
		// Hedging still runs: the price moved even if quoting failed.
		outcome = "error"
	}

	c.hedgeAllLocked(ctx)

	metrics.IndexUpdatesTotal.WithLabelValues(index.Name, outcome).Inc()
	metrics.IndexUpdateLatency.WithLabelValues(index.Name).Observe(time.Since(start).Seconds())
}

// HandleInternalTrades applies a batch of internal fills to the token
// ledger. Trades on pairs without a configured index are ignored;
// replayed trade ids are skipped. This path never hedges.
func (c *Coordinator) HandleInternalTrades(ctx context.Context, trades []model.InternalTrade) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byPair, err := c.indexByAssetPair(ctx)
	if err != nil {
		c.logger.Error("loading index settings failed", "error", err)
		return
	}

	for _, trade := range trades {
		settings, ok := byPair[trade.AssetPairID]
		if !ok {
			continue
		}

		seen, err := c.oracle.Seen(ctx, trade.ID)
		if err != nil {
			c.logger.Error("trade dedup check failed",
				"trade_id", trade.ID, "error", err)
			continue
		}
		if seen {
			metrics.DuplicateTradesTotal.Inc()
			continue
		}

		position, err := c.tokenPosition(ctx, settings.AssetID)
		if err != nil {
			c.logger.Error("loading token position failed",
				"trade_id", trade.ID, "asset_id", settings.AssetID, "error", err)
			continue
		}

		updated, err := ledger.Apply(position, settings.AssetID, trade)
		if err != nil {
			c.logger.Error("applying trade failed",
				"trade_id", trade.ID, "volume", trade.Volume, "error", err)
			continue
		}

		if err := c.store.InsertInternalTrade(ctx, trade, updated); err != nil {
			c.logger.Error("persisting trade failed",
				"trade_id", trade.ID, "error", err)
			continue
		}

		// Marked after the commit so a failed persist stays eligible
		// for bus redelivery.
		if err := c.oracle.Mark(ctx, trade.ID); err != nil {
			c.logger.Warn("marking trade applied failed",
				"trade_id", trade.ID, "error", err)
		}

		metrics.InternalTradesTotal.WithLabelValues(string(trade.Type)).Inc()
	}
}

// RunHedgeCycle re-evaluates hedges for every asset. Driven by the
// periodic timer; holds the same lock as the entry points.
func (c *Coordinator) RunHedgeCycle(ctx context.Context) {
	if !c.active(ctx) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hedgeAllLocked(ctx)
}

// CancelLimitOrders cancels the live order set for an index and clears
// the persisted set.
func (c *Coordinator) CancelLimitOrders(ctx context.Context, indexName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelLocked(ctx, indexName)
}

// SetState flips the market maker gate. Disabling cancels every live
// limit-order set so no stale quotes remain on the venue.
func (c *Coordinator) SetState(ctx context.Context, state model.MarketMakerState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.PutMarketMakerState(ctx, state); err != nil {
		return err
	}

	c.tracer.Broadcast(trace.Event{
		Type:      trace.EventState,
		Status:    string(state.Status),
		Timestamp: state.Timestamp,
	})

	if state.Status != model.StatusDisabled {
		return nil
	}

	all, err := c.store.ListIndexSettings(ctx)
	if err != nil {
		return err
	}
	for _, settings := range all {
		if err := c.cancelLocked(ctx, settings.Name); err != nil {
			c.logger.Error("cancel on disable failed",
				"index", settings.Name, "error", err)
		}
	}
	return nil
}

// --- quoting cycle ---

func (c *Coordinator) updatePrice(ctx context.Context, index model.Index) (model.IndexPrice, error) {
	prev, err := c.store.GetIndexPrice(ctx, index.Name)
	if errors.Is(err, store.ErrNotFound) {
		prev = nil
	} else if err != nil {
		return model.IndexPrice{}, err
	}

	price, err := pricing.Next(prev, index)
	if err != nil {
		return model.IndexPrice{}, err
	}
	if err := c.store.PutIndexPrice(ctx, price); err != nil {
		return model.IndexPrice{}, err
	}

	if _, err := c.instruments.EnsureHedgeSettings(ctx, price.Weights); err != nil {
		c.logger.Warn("ensuring hedge settings failed",
			"index", index.Name, "error", err)
	}
	return price, nil
}

func (c *Coordinator) quoteIndex(ctx context.Context, price model.IndexPrice) error {
	settings, err := c.store.GetIndexSettings(ctx, price.Name)
	if errors.Is(err, store.ErrNotFound) {
		// Price tracked but not quoted.
		return nil
	}
	if err != nil {
		return err
	}

	pair, err := c.instruments.AssetPair(ctx, model.ExchangeInternal, settings.AssetPairID)
	if err != nil {
		return err
	}
	baseAsset, err := c.instruments.Asset(ctx, model.ExchangeInternal, pair.BaseAsset)
	if err != nil {
		return err
	}
	quoteAsset, err := c.instruments.Asset(ctx, model.ExchangeInternal, pair.QuoteAsset)
	if err != nil {
		return err
	}

	sellPrice := orders.SellPrice(price.Price, settings.SellMarkup, pair.PriceAccuracy)
	buyPrice := orders.BuyPrice(price.Price, pair.PriceAccuracy)

	limitOrders := orders.Build(*settings, *pair, sellPrice, buyPrice, c.walletID)
	orders.ClampToBalance(limitOrders, *baseAsset, *quoteAsset,
		c.balances.Available(model.ExchangeInternal, pair.BaseAsset),
		c.balances.Available(model.ExchangeInternal, pair.QuoteAsset))
	orders.FilterMinVolume(limitOrders, pair.MinVolume)

	if err := c.store.PutLimitOrders(ctx, pair.AssetPairID, limitOrders); err != nil {
		return err
	}

	for _, order := range limitOrders {
		metrics.LimitOrdersPlaced.WithLabelValues(string(order.Type), string(order.Error)).Inc()
	}
	c.tracer.Broadcast(trace.Event{
		Type:        trace.EventLimitOrders,
		IndexName:   price.Name,
		AssetPairID: pair.AssetPairID,
		Orders:      limitOrders,
		Timestamp:   price.Timestamp,
	})

	allowed := orders.Allowed(limitOrders)
	if len(allowed) == 0 {
		return nil
	}

	adapter, err := c.registry.Get(model.ExchangeInternal)
	if err != nil {
		return err
	}
	if _, err := adapter.Apply(ctx, pair.AssetPairID, allowed); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) cancelLocked(ctx context.Context, indexName string) error {
	settings, err := c.store.GetIndexSettings(ctx, indexName)
	if err != nil {
		return err
	}

	adapter, err := c.registry.Get(model.ExchangeInternal)
	if err != nil {
		return err
	}
	if err := adapter.Cancel(ctx, settings.AssetPairID); err != nil {
		return err
	}
	return c.store.PutLimitOrders(ctx, settings.AssetPairID, nil)
}

// --- hedging ---

// hedgeAllLocked evaluates every underlying asset's net exposure and
// places hedge orders where the band decision says so. Failures are per
// asset; the cycle continues with the rest.
func (c *Coordinator) hedgeAllLocked(ctx context.Context) {
	hedgeSettings, err := c.store.GetHedgeSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		metrics.HedgeSkippedTotal.WithLabelValues("unconfigured").Inc()
		return
	}
	if err != nil {
		c.logger.Error("loading hedge settings failed", "error", err)
		return
	}
	if err := hedge.ValidateSettings(*hedgeSettings); err != nil {
		c.logger.Error("hedge settings invalid", "error", err)
		return
	}

	exposures, err := c.netExposures(ctx)
	if err != nil {
		c.logger.Error("computing exposures failed", "error", err)
		return
	}

	for assetID, net := range exposures {
		metrics.NetExposure.WithLabelValues(assetID).Set(net.InexactFloat64())
		if err := c.hedgeAsset(ctx, assetID, net, *hedgeSettings); err != nil {
			c.logger.Error("hedge failed",
				"asset_id", assetID, "net", net, "error", err)
		}
	}
}

// netExposures returns the signed unhedged exposure per underlying
// asset: Σ over indices of openVolume·weight, minus the accumulated
// external volume.
func (c *Coordinator) netExposures(ctx context.Context) (map[string]decimal.Decimal, error) {
	prices, err := c.store.ListIndexPrices(ctx)
	if err != nil {
		return nil, err
	}
	indexes, err := c.store.ListIndexSettings(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]model.IndexSettings, len(indexes))
	for _, s := range indexes {
		byName[s.Name] = s
	}

	exposures := make(map[string]decimal.Decimal)
	for _, price := range prices {
		settings, ok := byName[price.Name]
		if !ok {
			continue
		}
		position, err := c.tokenPosition(ctx, settings.AssetID)
		if err != nil {
			return nil, err
		}
		for _, w := range price.Weights {
			exposures[w.AssetID] = exposures[w.AssetID].
				Add(position.OpenVolume.Mul(w.Weight))
		}
	}

	for assetID := range exposures {
		hp, err := c.store.GetHedgePosition(ctx, assetID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		exposures[assetID] = exposures[assetID].Sub(hp.Volume)
	}
	return exposures, nil
}

func (c *Coordinator) hedgeAsset(ctx context.Context, assetID string, net decimal.Decimal, settings model.HedgeSettings) error {
	assetHedge, err := c.store.GetAssetHedgeSettings(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.HedgeSkippedTotal.WithLabelValues("unconfigured").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	if !instrument.Hedgeable(*assetHedge) {
		metrics.HedgeSkippedTotal.WithLabelValues("not_approved").Inc()
		return nil
	}

	decision := hedge.Decide(net, settings)
	if decision.None() {
		return nil
	}

	pair, err := c.instruments.AssetPair(ctx, assetHedge.Exchange, assetHedge.AssetPairID)
	if err != nil {
		return err
	}

	q, ok := c.quotes.Fresh(assetHedge.AssetPairID, c.quoteMaxAge(ctx), time.Now())
	if !ok {
		metrics.HedgeSkippedTotal.WithLabelValues("no_quote").Inc()
		return hedge.ErrNoFreshQuote
	}

	order := hedge.BuildOrder(decision, q, *pair)
	if order.Error != model.LimitOrderErrorNone {
		metrics.HedgeSkippedTotal.WithLabelValues("too_small").Inc()
		return nil
	}

	adapter, err := c.registry.Get(assetHedge.Exchange)
	if err != nil {
		return err
	}
	reports, err := adapter.Apply(ctx, assetHedge.AssetPairID, []model.LimitOrder{order})
	if err != nil {
		return err
	}

	metrics.HedgeOrdersTotal.WithLabelValues(assetHedge.Exchange, strconv.FormatBool(decision.Urgent)).Inc()
	c.tracer.Broadcast(trace.Event{
		Type:        trace.EventHedgeOrder,
		AssetID:     assetID,
		AssetPairID: assetHedge.AssetPairID,
		Exchange:    assetHedge.Exchange,
		Orders:      []model.LimitOrder{order},
		Timestamp:   time.Now().UTC(),
	})

	for _, report := range reports {
		if report.Status != exchange.OrderExecuted {
			continue
		}
		if err := c.recordExecution(ctx, assetID, *assetHedge, order, report); err != nil {
			return err
		}
	}
	return nil
}

// recordExecution books a confirmed hedge fill: the external trade and
// the shifted hedge position persist atomically.
func (c *Coordinator) recordExecution(ctx context.Context, assetID string,
	settings model.AssetHedgeSettings, order model.LimitOrder, report exchange.OrderReport) error {

	now := time.Now().UTC()

	tradeType := model.TradeTypeSell
	delta := report.ExecutedVolume
	if order.Type == model.LimitOrderBuy {
		tradeType = model.TradeTypeBuy
		delta = delta.Neg()
	}

	position, err := c.store.GetHedgePosition(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		position = &model.HedgePosition{AssetID: assetID, Exchange: settings.Exchange}
	} else if err != nil {
		return err
	}
	position.Exchange = settings.Exchange
	position.Volume = position.Volume.Add(delta)
	position.UpdatedAt = now

	trade := model.ExternalTrade{
		ID:          uuid.New().String(),
		Exchange:    settings.Exchange,
		AssetPairID: settings.AssetPairID,
		AssetID:     assetID,
		Type:        tradeType,
		Price:       report.ExecutedPrice,
		Volume:      report.ExecutedVolume,
		Timestamp:   now,
	}
	return c.store.InsertExternalTrade(ctx, trade, *position)
}

// --- shared helpers ---

func (c *Coordinator) active(ctx context.Context) bool {
	state, err := c.store.GetMarketMakerState(ctx)
	if errors.Is(err, store.ErrNotFound) {
		// Unconfigured engines never quote.
		return false
	}
	if err != nil {
		c.logger.Error("loading market maker state failed", "error", err)
		return false
	}
	return state.Status == model.StatusActive
}

func (c *Coordinator) tokenPosition(ctx context.Context, assetID string) (model.TokenPosition, error) {
	position, err := c.store.GetTokenPosition(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return ledger.NewPosition(assetID), nil
	}
	if err != nil {
		return model.TokenPosition{}, err
	}
	return *position, nil
}

func (c *Coordinator) indexByAssetPair(ctx context.Context) (map[string]model.IndexSettings, error) {
	all, err := c.store.ListIndexSettings(ctx)
	if err != nil {
		return nil, err
	}
	byPair := make(map[string]model.IndexSettings, len(all))
	for _, settings := range all {
		byPair[settings.AssetPairID] = settings
	}
	return byPair, nil
}

func (c *Coordinator) quoteMaxAge(ctx context.Context) time.Duration {
	timers, err := c.store.GetTimerSettings(ctx)
	if err != nil || timers.QuoteMaxAge <= 0 {
		return DefaultQuoteMaxAge
	}
	return timers.QuoteMaxAge
}
