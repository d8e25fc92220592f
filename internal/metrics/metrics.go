package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonium_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harmonium_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Catalog metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonium_catalog_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harmonium_catalog_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harmonium_catalog_transaction_duration_seconds",
			Help:    "Catalog write transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)
)

// Scan pipeline metrics
var (
	ScanPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonium_scan_passes_total",
			Help: "Total number of scan passes by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "timeout"
	)

	ScanPassDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonium_scan_last_pass_duration_seconds",
			Help: "Duration of the last completed scan pass in seconds",
		},
	)

	ScanLastPassTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonium_scan_last_pass_timestamp",
			Help: "Unix timestamp of the last completed scan pass",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonium_scan_running",
			Help: "1 while a scan pass is in progress",
		},
	)

	ScanFilesWalked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonium_scan_files_walked_total",
			Help: "Total number of audio files visited by the scanner",
		},
	)

	ScanTagsParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonium_scan_tags_parsed_total",
			Help: "Total number of files whose tags were parsed (fingerprint changed)",
		},
	)

	ScanTagErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonium_scan_tag_errors_total",
			Help: "Total number of tag extraction failures",
		},
	)

	ScanChangesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonium_scan_changes_applied_total",
			Help: "Catalog changes applied by scan passes",
		},
		[]string{"kind"}, // "added", "updated", "removed"
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonium_watcher_events_total",
			Help: "Total number of filesystem events received",
		},
	)

	WatcherRescansTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonium_watcher_rescans_triggered_total",
			Help: "Total number of debounced rescan requests fired",
		},
	)

	WatcherOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonium_watcher_overflows_total",
			Help: "Total number of OS event buffer overflows",
		},
	)
)

// Search metrics
var (
	SearchRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonium_search_rebuilds_total",
			Help: "Total number of search index rebuilds",
		},
	)

	SearchRebuildDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonium_search_last_rebuild_duration_seconds",
			Help: "Duration of the last search index rebuild in seconds",
		},
	)
)
