package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfs_query_cache_hits_total",
			Help: "Query cache reads served from memory.",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfs_query_cache_misses_total",
			Help: "Query cache reads that invoked the producer (absent or expired entry).",
		},
	)

	CacheFetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfs_query_cache_fetch_errors_total",
			Help: "Producer failures on the query cache miss path.",
		},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfs_query_cache_invalidations_total",
			Help: "Entries removed from the query cache, by invalidation kind.",
		},
		[]string{"kind"}, // key, prefix, clear
	)

	UnreadCountGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sfs_unread_count",
			Help: "Last applied unread count per section.",
		},
		[]string{"section"},
	)

	UnreadRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfs_unread_refresh_total",
			Help: "Per-section count query outcomes during refreshes.",
		},
		[]string{"section", "result"}, // ok, error, stale
	)

	UnreadMarkReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfs_unread_mark_read_total",
			Help: "Mark-as-read bulk updates by section and outcome.",
		},
		[]string{"section", "result"},
	)

	ChangeEventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfs_change_events_received_total",
			Help: "Change notifications received from the change feed.",
		},
		[]string{"section", "driver"},
	)

	ChangeSubscribeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfs_change_subscribe_failures_total",
			Help: "Failed attempts to open a change subscription.",
		},
		[]string{"section"},
	)

	ActiveBadgeConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sfs_active_badge_connections",
			Help: "Number of active admin badge WebSocket connections.",
		},
	)
)

func IncrementCacheHit()  { CacheHitsTotal.Inc() }
func IncrementCacheMiss() { CacheMissesTotal.Inc() }

func IncrementCacheFetchError() { CacheFetchErrorsTotal.Inc() }

// AddCacheInvalidations records n removed entries for kind.
func AddCacheInvalidations(kind string, n int) {
	if n > 0 {
		CacheInvalidationsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func SetUnreadCount(section string, n int) {
	UnreadCountGauge.WithLabelValues(section).Set(float64(n))
}

func IncrementUnreadRefresh(section, result string) {
	UnreadRefreshTotal.WithLabelValues(section, result).Inc()
}

func IncrementMarkRead(section, result string) {
	UnreadMarkReadTotal.WithLabelValues(section, result).Inc()
}

func IncrementChangeEventReceived(section, driver string) {
	ChangeEventsReceivedTotal.WithLabelValues(section, driver).Inc()
}

func IncrementSubscribeFailure(section string) {
	ChangeSubscribeFailuresTotal.WithLabelValues(section).Inc()
}

// IncrementActiveBadgeConnections increments the active connections gauge.
func IncrementActiveBadgeConnections() {
	ActiveBadgeConnectionsGauge.Inc()
}

// DecrementActiveBadgeConnections decrements the active connections gauge.
func DecrementActiveBadgeConnections() {
	ActiveBadgeConnectionsGauge.Dec()
}
