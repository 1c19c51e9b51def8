// Package metrics holds the Prometheus collectors shared by the client and the
// companion server. Collectors register with the default registry on import.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP server
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitconsole_http_requests_total",
			Help: "HTTP requests served, by route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitconsole_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Backend API calls
	BackendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitconsole_backend_calls_total",
			Help: "Backend RPC calls by operation and result (ok, error, rejected)",
		},
		[]string{"operation", "result"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitconsole_backend_call_duration_seconds",
			Help:    "Backend RPC call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fitconsole_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Push registration
	PushTokenUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitconsole_push_token_updates_total",
			Help: "Push token registrations by outcome (sent, unchanged, denied, error)",
		},
		[]string{"outcome"},
	)

	// Document store
	DocstoreSnapshots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitconsole_docstore_snapshots_total",
			Help: "Snapshots delivered to subscribers, by collection",
		},
		[]string{"collection"},
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordBackendCall records one backend call.
func RecordBackendCall(operation, result string, d time.Duration) {
	BackendCalls.WithLabelValues(operation, result).Inc()
	BackendCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}
