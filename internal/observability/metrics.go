// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// Sync metrics
	LogsFetched       *prometheus.CounterVec
	EventsProjected   *prometheus.CounterVec
	EventsQuarantined *prometheus.CounterVec
	EventsDuplicate   prometheus.Counter
	MalformedLogs     prometheus.Counter
	SyncErrors        *prometheus.CounterVec
	SyncBatchDuration *prometheus.HistogramVec
	WatermarkBlock    *prometheus.GaugeVec
	ChainHead         prometheus.Gauge

	// Projection metrics
	ProjectionDuration *prometheus.HistogramVec

	// Fanout metrics
	ActiveConnections  prometheus.Gauge
	TopicSubscriptions prometheus.Gauge
	MessagesPublished  *prometheus.CounterVec
	SlowClientsDropped prometheus.Counter

	// Cache metrics
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheStaleServed *prometheus.CounterVec
	CacheEntries     prometheus.Gauge

	// Retention metrics
	BarsPruned *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSync prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launchpad_indexer"
	}

	return &Metrics{
		LogsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "logs_fetched_total",
			Help:      "Total number of raw logs fetched by source kind",
		}, []string{"source_kind"}),
		EventsProjected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_projected_total",
			Help:      "Total number of events projected by type",
		}, []string{"event_type"}),
		EventsQuarantined: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_quarantined_total",
			Help:      "Total number of events quarantined for invariant violations",
		}, []string{"event_type"}),
		EventsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_duplicate_total",
			Help:      "Total number of duplicate event deliveries skipped",
		}),
		MalformedLogs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "malformed_logs_total",
			Help:      "Total number of logs that failed to decode",
		}),
		SyncErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Total number of sync cycle errors by source kind",
		}, []string{"source_kind"}),
		SyncBatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "batch_duration_seconds",
			Help:      "Per-source sync batch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source_kind"}),
		WatermarkBlock: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "watermark_block",
			Help:      "Last fully synced block by source kind (max across sources)",
		}, []string{"source_kind"}),
		ChainHead: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "chain_head_block",
			Help:      "Most recent chain head observed",
		}),

		ProjectionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "duration_seconds",
			Help:      "Event projection duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),

		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "active_connections",
			Help:      "Current number of websocket connections",
		}),
		TopicSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "topic_subscriptions",
			Help:      "Current number of (connection, topic) subscriptions",
		}),
		MessagesPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "messages_published_total",
			Help:      "Total messages delivered to connection buffers by topic kind",
		}, []string{"topic_kind"}),
		SlowClientsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "slow_clients_dropped_total",
			Help:      "Total connections dropped for full send buffers",
		}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits by TTL class",
		}, []string{"class"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses by TTL class",
		}, []string{"class"}),
		CacheStaleServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "stale_served_total",
			Help:      "Total stale entries served because recompute failed",
		}, []string{"class"}),
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cache entries",
		}),

		BarsPruned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "bars_pruned_total",
			Help:      "Total price bars deleted by retention pruning",
		}, []string{"interval"}),

		LastSuccessfulSync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of the last tick that synced every source",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordLogsFetched counts raw logs fetched for a source kind.
func RecordLogsFetched(sourceKind string, n int) {
	DefaultMetrics.LogsFetched.WithLabelValues(sourceKind).Add(float64(n))
}

// RecordEventProjected counts one projected event and its latency.
func RecordEventProjected(eventType string, seconds float64) {
	DefaultMetrics.EventsProjected.WithLabelValues(eventType).Inc()
	DefaultMetrics.ProjectionDuration.WithLabelValues(eventType).Observe(seconds)
}

// RecordEventQuarantined counts one quarantined event.
func RecordEventQuarantined(eventType string) {
	DefaultMetrics.EventsQuarantined.WithLabelValues(eventType).Inc()
}

// RecordDuplicateEvent counts one skipped duplicate delivery.
func RecordDuplicateEvent() {
	DefaultMetrics.EventsDuplicate.Inc()
}

// RecordMalformedLog counts one undecodable log.
func RecordMalformedLog() {
	DefaultMetrics.MalformedLogs.Inc()
}

// RecordSyncError counts one failed per-source sync batch.
func RecordSyncError(sourceKind string) {
	DefaultMetrics.SyncErrors.WithLabelValues(sourceKind).Inc()
}

// RecordSyncBatch records the duration of one per-source batch.
func RecordSyncBatch(sourceKind string, seconds float64) {
	DefaultMetrics.SyncBatchDuration.WithLabelValues(sourceKind).Observe(seconds)
}

// UpdateWatermark publishes a source's last synced block.
func UpdateWatermark(sourceKind string, block uint64) {
	DefaultMetrics.WatermarkBlock.WithLabelValues(sourceKind).Set(float64(block))
}

// UpdateChainHead publishes the observed chain head.
func UpdateChainHead(block uint64) {
	DefaultMetrics.ChainHead.Set(float64(block))
}

// RecordPublish counts fanout deliveries for a topic kind.
func RecordPublish(topicKind string, n int) {
	DefaultMetrics.MessagesPublished.WithLabelValues(topicKind).Add(float64(n))
}

// RecordSlowClientDropped counts one connection dropped for backpressure.
func RecordSlowClientDropped() {
	DefaultMetrics.SlowClientsDropped.Inc()
}

// RecordCacheHit counts one cache hit.
func RecordCacheHit(class string) {
	DefaultMetrics.CacheHits.WithLabelValues(class).Inc()
}

// RecordCacheMiss counts one cache miss.
func RecordCacheMiss(class string) {
	DefaultMetrics.CacheMisses.WithLabelValues(class).Inc()
}

// RecordCacheStale counts one stale value served fail-open.
func RecordCacheStale(class string) {
	DefaultMetrics.CacheStaleServed.WithLabelValues(class).Inc()
}

// UpdateCacheEntries publishes the current cache size.
func UpdateCacheEntries(n int) {
	DefaultMetrics.CacheEntries.Set(float64(n))
}

// RecordBarsPruned counts bars removed by retention.
func RecordBarsPruned(interval string, n int64) {
	DefaultMetrics.BarsPruned.WithLabelValues(interval).Add(float64(n))
}

// RecordSyncSuccess stamps a fully successful sync tick.
func RecordSyncSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulSync.Set(float64(unixSeconds))
}
