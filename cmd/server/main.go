package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/indexlab/hedging-engine/internal/admin"
	"github.com/indexlab/hedging-engine/internal/balance"
	"github.com/indexlab/hedging-engine/internal/dedup"
	"github.com/indexlab/hedging-engine/internal/engine"
	"github.com/indexlab/hedging-engine/internal/exchange"
	"github.com/indexlab/hedging-engine/internal/ingest"
	"github.com/indexlab/hedging-engine/internal/instrument"
	"github.com/indexlab/hedging-engine/internal/metrics"
	"github.com/indexlab/hedging-engine/internal/model"
	"github.com/indexlab/hedging-engine/internal/quote"
	"github.com/indexlab/hedging-engine/internal/store"
	"github.com/indexlab/hedging-engine/internal/trace"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	var st store.Store
	var rdb *redis.Client
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, 30*time.Second)
		slog.Info("Redis cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Trade deduplication ---
	var oracle dedup.Oracle
	if rdb != nil {
		oracle = dedup.NewRedisOracle(rdb, 24*time.Hour)
	} else {
		oracle = dedup.NewMemoryOracle()
	}

	// --- Venue adapters ---
	// INTERNAL_EXCHANGE_URL is the internal matching engine's gateway;
	// HEDGE_EXCHANGES is "name=url,name=url" for external venues.
	adapters := []exchange.Adapter{
		exchange.NewRestAdapter(model.ExchangeInternal, getenv("INTERNAL_EXCHANGE_URL", "http://localhost:9000"),
			os.Getenv("INTERNAL_EXCHANGE_API_KEY"), logger),
	}
	for _, entry := range splitList(os.Getenv("HEDGE_EXCHANGES")) {
		name, url, ok := strings.Cut(entry, "=")
		if !ok {
			slog.Error("invalid HEDGE_EXCHANGES entry", "entry", entry)
			os.Exit(1)
		}
		adapters = append(adapters, exchange.NewRestAdapter(name, url,
			os.Getenv("HEDGE_EXCHANGE_API_KEY"), logger))
	}
	registry := exchange.NewRegistry(adapters...)

	// --- Shared caches ---
	balances := balance.NewService(registry, logger)
	quotes := quote.NewCache(parseMapping(os.Getenv("QUOTE_SYMBOL_MAPPING")))

	// --- Trace hub ---
	hub := trace.NewHub()
	go hub.Run()

	// --- Engine ---
	coordinator := engine.New(engine.Config{
		Store:       st,
		Instruments: instrument.NewService(st, logger),
		Balances:    balances,
		Quotes:      quotes,
		Registry:    registry,
		Oracle:      oracle,
		Tracer:      hub,
		Logger:      logger,
		WalletID:    getenv("WALLET_ID", "market-maker"),
	})

	go engine.RunTimers(ctx, coordinator, balances, logger)

	// --- Bus subscriptions ---
	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		subscriber := ingest.NewSubscriber(ingest.Config{
			Brokers:    brokers,
			GroupID:    getenv("KAFKA_GROUP_ID", "hedging-engine"),
			IndexTopic: getenv("KAFKA_INDEX_TOPIC", "index-updates"),
			TradeTopic: getenv("KAFKA_TRADE_TOPIC", "internal-trades"),
			QuoteTopic: getenv("KAFKA_QUOTE_TOPIC", "external-quotes"),
		}, coordinator, quotes, logger)
		go subscriber.Run(ctx)
		slog.Info("kafka ingestion started", "brokers", brokers)
	} else {
		slog.Warn("KAFKA_BROKERS not set, bus ingestion disabled")
	}

	// --- HTTP router ---
	adminSvc := admin.NewService(st, coordinator, balances, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"hedging-engine"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/trace", hub.HandleWS)
		adminSvc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("hedging-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down hedging-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("hedging-engine stopped")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseMapping parses "EXT:INT,EXT:INT" into the quote symbol dictionary.
func parseMapping(s string) map[string]string {
	mapping := make(map[string]string)
	for _, entry := range splitList(s) {
		ext, internal, ok := strings.Cut(entry, ":")
		if ok {
			mapping[ext] = internal
		}
	}
	return mapping
}
