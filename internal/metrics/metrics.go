// Package metrics provides Prometheus instrumentation for the position engine.
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
	// TransactionsTotal counts ledger appends, partitioned by type.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_transactions_total",
		Help: "Total number of transactions appended to the ledger",
	}, []string{"type"})

	// RecalculationsTotal counts full position replays.
	RecalculationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_recalculations_total",
		Help: "Total number of position recalculations",
	})

	// ValidationRejections counts transactions rejected before any state change.
	ValidationRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_validation_rejections_total",
		Help: "Transactions rejected by input validation",
	})

	// ConsistencyErrors counts post-update invariant violations surfaced
	// to callers. A nonzero rate is the signal to run the repair path.
	ConsistencyErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_consistency_errors_total",
		Help: "Numeric invariant violations surfaced during aggregation",
	})

	// ApplyLatency tracks the end-to-end latency of a ledger append,
	// including the position write.
	ApplyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_apply_latency_seconds",
		Help:    "Transaction append latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "folio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_http_request_duration_seconds",
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
