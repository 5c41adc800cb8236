package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the gateway.
// It includes counters for proxied requests, upstream attempts and cache
// operations, and histograms for request and report durations.
type Metrics struct {
	ProxyRequests        *prometheus.CounterVec   // Counter for requests served by the local proxy
	ProxyDuration        *prometheus.HistogramVec // Histogram for proxy request durations
	UpstreamAttempts     *prometheus.CounterVec   // Counter for single HTTP attempts against the backend
	UpstreamCalls        *prometheus.CounterVec   // Counter for logical backend calls
	CacheOps             *prometheus.CounterVec   // Counter for offline cache operations
	PollerRuns           *prometheus.CounterVec   // Counter for notification poller ticks
	NotificationsCreated *prometheus.CounterVec   // Counter for notifications created by the poller
	ViewFetches          *prometheus.CounterVec   // Counter for paginated list fetches
	ReportGeneration     prometheus.Histogram     // Histogram for excel export durations
}

// NewMetrics creates a new Metrics instance with the provided Prometheus Registerer.
//
// Parameters:
//   - reg: A Prometheus Registerer used to register the metrics.
//
// Returns:
//   - A pointer to the newly created Metrics instance.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ProxyRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hotelgate_proxy_requests_total",
			Help: "Total number of requests served by the proxy",
		}, []string{"method", "route", "status"}),
		ProxyDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotelgate_proxy_request_duration_seconds",
			Help:    "Duration of proxy requests.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route"}),
		UpstreamAttempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hotelgate_upstream_attempts_total",
			Help: "Single HTTP attempts made against backend candidates",
		}, []string{"outcome"}), // outcome: success, retryable, fatal
		UpstreamCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hotelgate_upstream_calls_total",
			Help: "Logical backend calls and how they ended",
		}, []string{"result"}), // result: success, failure, offline
		CacheOps: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hotelgate_cache_operations_total",
			Help: "Offline cache operations",
		}, []string{"operation", "result"}), // operation: get, set; result: hit, miss, success, error
		PollerRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hotelgate_notification_poller_runs_total",
			Help: "Notification poller ticks",
		}, []string{"result"}), // result: baseline, success, partial
		NotificationsCreated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hotelgate_notifications_created_total",
			Help: "Notifications created from backend events",
		}, []string{"type"}),
		ViewFetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hotelgate_view_fetches_total",
			Help: "Paginated list fetches",
		}, []string{"resource", "result"}), // result: loaded, error, stale
		ReportGeneration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "hotelgate_report_generation_duration_seconds",
			Help: "Duration of excel export generation.",
		}),
	}
}
