// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Capture metrics
	FetchTicks         *prometheus.CounterVec
	SnapshotsStored    prometheus.Counter
	PositionRowsStored prometheus.Counter
	InstrumentsCreated prometheus.Counter
	SessionState       prometheus.Gauge
	CalendarLookups    *prometheus.CounterVec

	// Archive metrics
	ArchiveRuns     *prometheus.CounterVec
	ArchiveDuration prometheus.Histogram

	// API metrics
	HTTPRequestDuration *prometheus.HistogramVec
	WSClients           prometheus.Gauge
	CacheEvents         *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "options_position_lab"
	}

	return &Metrics{
		// Capture metrics
		FetchTicks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "fetch_ticks_total",
			Help:      "Total number of fetch ticks by outcome",
		}, []string{"outcome"}),
		SnapshotsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "snapshots_stored_total",
			Help:      "Total number of snapshots written to the day store",
		}),
		PositionRowsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "position_rows_stored_total",
			Help:      "Total number of position rows written to the day store",
		}),
		InstrumentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "instruments_created_total",
			Help:      "Total number of instrument identities created",
		}),
		SessionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "session_state",
			Help:      "Current session controller state as an enum value",
		}),
		CalendarLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "calendar_lookups_total",
			Help:      "Total number of calendar lookups by outcome",
		}, []string{"outcome"}),

		// Archive metrics
		ArchiveRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "runs_total",
			Help:      "Total number of archive runs by status",
		}, []string{"status"}),
		ArchiveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "duration_seconds",
			Help:      "Archive run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// API metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_clients",
			Help:      "Number of connected websocket clients",
		}),
		CacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_events_total",
			Help:      "Total number of cache lookups by cache and outcome",
		}, []string{"cache", "outcome"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetchTick records one fetch tick with its outcome.
func RecordFetchTick(outcome string) {
	DefaultMetrics.FetchTicks.WithLabelValues(outcome).Inc()
}

// RecordSnapshotStored records a stored snapshot and its position row count.
func RecordSnapshotStored(rows int) {
	DefaultMetrics.SnapshotsStored.Inc()
	DefaultMetrics.PositionRowsStored.Add(float64(rows))
}

// RecordInstrumentCreated increments the instruments created counter.
func RecordInstrumentCreated() {
	DefaultMetrics.InstrumentsCreated.Inc()
}

// SetSessionState updates the session state gauge.
func SetSessionState(state int) {
	DefaultMetrics.SessionState.Set(float64(state))
}

// RecordCalendarLookup records one calendar lookup with its outcome.
func RecordCalendarLookup(outcome string) {
	DefaultMetrics.CalendarLookups.WithLabelValues(outcome).Inc()
}

// RecordArchive records an archive run.
func RecordArchive(status string, seconds float64) {
	DefaultMetrics.ArchiveRuns.WithLabelValues(status).Inc()
	DefaultMetrics.ArchiveDuration.Observe(seconds)
}

// RecordHTTPRequest records HTTP request duration.
func RecordHTTPRequest(path, method, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(path, method, status).Observe(seconds)
}

// WSClientConnected increments the websocket client gauge.
func WSClientConnected() {
	DefaultMetrics.WSClients.Inc()
}

// WSClientDisconnected decrements the websocket client gauge.
func WSClientDisconnected() {
	DefaultMetrics.WSClients.Dec()
}

// RecordCacheEvent records a cache hit or miss.
func RecordCacheEvent(cache, outcome string) {
	DefaultMetrics.CacheEvents.WithLabelValues(cache, outcome).Inc()
}
