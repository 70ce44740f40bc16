package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Document store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec

	// Query metrics
	QueriesEvaluated *prometheus.CounterVec
	QueryRejected    prometheus.Counter
	QueryResultSize  prometheus.Histogram

	// Subscription metrics
	SubscriptionsActive  prometheus.Gauge
	SnapshotsPushed      *prometheus.CounterVec
	SnapshotBuildLatency prometheus.Histogram

	// Roster metrics
	RosterBuilds       *prometheus.CounterVec
	RosterBuildLatency prometheus.Histogram
	RosterSize         *prometheus.GaugeVec

	// WebSocket metrics
	WebsocketClients  prometheus.Gauge
	WebsocketMessages *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		// Document store metrics
		StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operations_total",
			Help:      "Total number of document store operations",
		}, []string{"collection", "operation", "status"}),
		StoreLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of document store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"collection", "operation"}),

		// Query metrics
		QueriesEvaluated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queries_evaluated_total",
			Help:      "Total number of composed queries evaluated",
		}, []string{"collection"}),
		QueryRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queries_rejected_total",
			Help:      "Total number of queries rejected for unsupported operators",
		}),
		QueryResultSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "query_result_size",
			Help:      "Number of documents returned per evaluated query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),

		// Subscription metrics
		SubscriptionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscriptions_active",
			Help:      "Current number of live collection subscriptions",
		}),
		SnapshotsPushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "snapshots_pushed_total",
			Help:      "Total number of snapshots pushed to subscribers",
		}, []string{"collection"}),
		SnapshotBuildLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "snapshot_build_duration_seconds",
			Help:      "Time spent rebuilding a subscription snapshot",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		// Roster metrics
		RosterBuilds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "roster_builds_total",
			Help:      "Total number of patient roster builds",
		}, []string{"status"}),
		RosterBuildLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "roster_build_duration_seconds",
			Help:      "Time spent aggregating a patient roster",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		RosterSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "roster_size",
			Help:      "Number of patients in the most recent roster build",
		}, []string{"doctor_id"}),

		// WebSocket metrics
		WebsocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "websocket_clients",
			Help:      "Current number of connected websocket clients",
		}),
		WebsocketMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "websocket_messages_total",
			Help:      "Total number of websocket messages sent",
		}, []string{"topic_kind"}),
	}
}

// New creates an unregistered metric set for tests and tools that
// manage their own registry. Every instrument is populated so callers
// never need nil checks per field.
func New(namespace string) *Metrics {
	return &Metrics{
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of document store operations",
		}, []string{"collection", "operation", "status"}),
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of document store operations",
		}, []string{"collection", "operation"}),
		QueriesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_evaluated_total",
			Help:      "Total number of composed queries evaluated",
		}, []string{"collection"}),
		QueryRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_rejected_total",
			Help:      "Total number of queries rejected for unsupported operators",
		}),
		QueryResultSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_result_size",
			Help:      "Number of documents returned per evaluated query",
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Current number of live collection subscriptions",
		}),
		SnapshotsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_pushed_total",
			Help:      "Total number of snapshots pushed to subscribers",
		}, []string{"collection"}),
		SnapshotBuildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_build_duration_seconds",
			Help:      "Time spent rebuilding a subscription snapshot",
		}),
		RosterBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_builds_total",
			Help:      "Total number of patient roster builds",
		}, []string{"status"}),
		RosterBuildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "roster_build_duration_seconds",
			Help:      "Time spent aggregating a patient roster",
		}),
		RosterSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_size",
			Help:      "Number of patients in the most recent roster build",
		}, []string{"doctor_id"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Current number of connected websocket clients",
		}),
		WebsocketMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_total",
			Help:      "Total number of websocket messages sent",
		}, []string{"topic_kind"}),
	}
}
