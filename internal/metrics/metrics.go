package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every collector exported by this process
const namespace = "cityapp"

var (
	httpLabels  = []string{"method", "endpoint", "status"}
	storeLabels = []string{"datastore", "operation"}
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Datastore Metrics
	DatastoreOperationsTotal   *prometheus.CounterVec
	DatastoreOperationDuration *prometheus.HistogramVec
	LiveSubscribers            *prometheus.GaugeVec

	// Coordinator Metrics
	ViewRecomputations prometheus.Counter
	ViewCities         prometheus.Gauge
	CommandsTotal      *prometheus.CounterVec
}

// New creates all metrics and registers them on reg
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests served by the local API",
		}, httpLabels),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, httpLabels),
		HTTPResponseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "response_size_bytes",
			Help:    "HTTP response body size",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, httpLabels),

		DatastoreOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "operations_total",
			Help: "City and favorite store operations by outcome",
		}, append(storeLabels, "status")),
		DatastoreOperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "operation_duration_seconds",
			Help:    "City and favorite store operation latency",
			Buckets: prometheus.DefBuckets,
		}, storeLabels),
		LiveSubscribers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "live_subscribers",
			Help: "Observers attached to a live sequence",
		}, []string{"sequence"}),

		ViewRecomputations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "city_view_recomputations_total",
			Help: "Derived view recomputations",
		}),
		ViewCities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "city_view_cities",
			Help: "Cities in the current derived view",
		}),
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "city_commands_total",
			Help: "Coordinator commands by result",
		}, []string{"command", "result"}),
	}
}
