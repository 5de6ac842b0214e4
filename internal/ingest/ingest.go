// Package ingest subscribes to the three inbound Kafka streams — index
// updates, internal trade batches, and external quotes — and feeds them
// into the engine. Wire payloads are the bus JSON contract, separate
// from the storage models.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/engine"
	"github.com/indexlab/hedging-engine/internal/model"
	"github.com/indexlab/hedging-engine/internal/quote"
)

// Config describes the bus connection.
type Config struct {
	Brokers    []string
	GroupID    string
	IndexTopic string
	TradeTopic string
	QuoteTopic string
}

// Subscriber runs the three reader loops.
type Subscriber struct {
	cfg         Config
	coordinator *engine.Coordinator
	quotes      *quote.Cache
	logger      *slog.Logger
}

// NewSubscriber creates a subscriber over an engine and quote cache.
func NewSubscriber(cfg Config, coordinator *engine.Coordinator, quotes *quote.Cache, logger *slog.Logger) *Subscriber {
	return &Subscriber{cfg: cfg, coordinator: coordinator, quotes: quotes, logger: logger}
}

// Run starts one goroutine per topic and blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	go s.consume(ctx, s.cfg.IndexTopic, s.handleIndex)
	go s.consume(ctx, s.cfg.TradeTopic, s.handleTrades)
	s.consume(ctx, s.cfg.QuoteTopic, s.handleQuote)
}

func (s *Subscriber) consume(ctx context.Context, topic string, handle func(context.Context, []byte) error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		GroupID:  s.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	s.logger.Info("consuming", "topic", topic, "group", s.cfg.GroupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			s.logger.Error("read failed", "topic", topic, "error", err)
			continue
		}
		if err := handle(ctx, msg.Value); err != nil {
			s.logger.Error("message dropped",
				"topic", topic, "offset", msg.Offset, "error", err)
		}
	}
}

// --- wire payloads (bus JSON contract) ---

type indexMessage struct {
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
	Weights   []struct {
		AssetID string          `json:"assetId"`
		Weight  decimal.Decimal `json:"weight"`
		Price   decimal.Decimal `json:"price"`
	} `json:"weights"`
}

type tradeMessage struct {
	ID             string          `json:"id"`
	AssetPairID    string          `json:"assetPairId"`
	Type           string          `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Volume         decimal.Decimal `json:"volume"`
	OppositeVolume decimal.Decimal `json:"oppositeVolume"`
	Timestamp      time.Time       `json:"timestamp"`
	WalletID       string          `json:"walletId"`
}

type quoteMessage struct {
	Asset     string          `json:"asset"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// --- handlers ---

func (s *Subscriber) handleIndex(ctx context.Context, payload []byte) error {
	var msg indexMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	s.coordinator.HandleIndex(ctx, toIndex(msg))
	return nil
}

// handleTrades accepts either a JSON array (batch) or a single object.
func (s *Subscriber) handleTrades(ctx context.Context, payload []byte) error {
	var msgs []tradeMessage
	if err := json.Unmarshal(payload, &msgs); err != nil {
		var single tradeMessage
		if err := json.Unmarshal(payload, &single); err != nil {
			return err
		}
		msgs = []tradeMessage{single}
	}

	trades := make([]model.InternalTrade, len(msgs))
	for i, m := range msgs {
		trades[i] = model.InternalTrade{
			ID:             m.ID,
			AssetPairID:    m.AssetPairID,
			Type:           model.TradeType(m.Type),
			Price:          m.Price,
			Volume:         m.Volume,
			OppositeVolume: m.OppositeVolume,
			Timestamp:      m.Timestamp,
			WalletID:       m.WalletID,
		}
	}
	s.coordinator.HandleInternalTrades(ctx, trades)
	return nil
}

func (s *Subscriber) handleQuote(_ context.Context, payload []byte) error {
	var msg quoteMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	s.quotes.Update(model.Quote{
		AssetPairID: msg.Asset,
		Source:      msg.Source,
		Bid:         msg.Bid,
		Ask:         msg.Ask,
		Timestamp:   msg.Timestamp,
	})
	return nil
}

func toIndex(msg indexMessage) model.Index {
	weights := make([]model.AssetWeight, len(msg.Weights))
	for i, w := range msg.Weights {
		weights[i] = model.AssetWeight{AssetID: w.AssetID, Weight: w.Weight, Price: w.Price}
	}
	return model.Index{
		Name:      msg.Name,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
		Weights:   weights,
	}
}
