// Package metrics provides Prometheus instrumentation for the hedging engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IndexUpdatesTotal counts inbound index updates by outcome.
	IndexUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ihe_index_updates_total",
		Help: "Inbound index updates processed",
	}, []string{"index", "outcome"})

	// IndexUpdateLatency tracks the full quoting-cycle latency per index.
	IndexUpdateLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ihe_index_update_latency_seconds",
		Help:    "Index update handling latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"index"})

	// LimitOrdersPlaced counts limit orders derived per side and error state.
	LimitOrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ihe_limit_orders_total",
		Help: "Limit orders derived by the quoting cycle",
	}, []string{"side", "error"})

	// InternalTradesTotal counts internal trades applied partitioned by side.
	InternalTradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ihe_internal_trades_total",
		Help: "Internal trades applied to token positions",
	}, []string{"side"})

	// DuplicateTradesTotal counts replayed trade ids filtered out.
	DuplicateTradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ihe_duplicate_trades_total",
		Help: "Internal trades skipped as already seen",
	})

	// HedgeOrdersTotal counts hedge orders placed by venue and urgency.
	HedgeOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ihe_hedge_orders_total",
		Help: "Hedge orders placed on external venues",
	}, []string{"exchange", "urgent"})

	// HedgeSkippedTotal counts hedge decisions dropped before placement.
	HedgeSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ihe_hedge_skipped_total",
		Help: "Hedge decisions skipped before order placement",
	}, []string{"reason"})

	// NetExposure tracks the current net exposure per underlying asset.
	NetExposure = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ihe_net_exposure",
		Help: "Net unhedged exposure per underlying asset",
	}, []string{"asset"})

	// TraceClients tracks connected trace feed clients.
	TraceClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ihe_trace_clients",
		Help: "Number of connected trace WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ihe_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ihe_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
