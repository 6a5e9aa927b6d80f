package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	SearchesTotal       *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	ProviderRequests    *prometheus.CounterVec
	ProviderLatency     *prometheus.HistogramVec
	SnapshotsRecorded   prometheus.Counter
	PersistenceErrors   prometheus.Counter
	PriceDropAlerts     prometheus.Counter
	TrackingSessions    *prometheus.CounterVec
	ActiveStreamClients prometheus.Gauge
	ErrorsCount         *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics on the default registry
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the metrics on reg
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "The total number of flight searches by result source",
		}, []string{"source"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time taken to answer a flight search",
			Buckets:   prometheus.DefBuckets,
		}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "The total number of provider queries by outcome",
		}, []string{"provider", "status"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of provider queries",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"provider"}),
		SnapshotsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_snapshots_recorded_total",
			Help:      "The total number of price snapshots written",
		}),
		PersistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "The total number of failed price history writes",
		}),
		PriceDropAlerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_drop_alerts_total",
			Help:      "The total number of price drop alerts published",
		}),
		TrackingSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_sessions_total",
			Help:      "The total number of finished tracking sessions by status",
		}, []string{"status"}),
		ActiveStreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_stream_clients",
			Help:      "Number of connected streaming search clients",
		}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
