package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the analytics core.
// All record methods are nil-safe so components can run without
// metrics in tests.
type Metrics struct {
	SnapshotScans       *prometheus.CounterVec
	SnapshotScanSeconds prometheus.Histogram
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	HistoryPages        prometheus.Counter
	HTTPRetries         prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// NewMetrics registers the instruments on the default registry.
// Call it once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		SnapshotScans: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warz_snapshot_scans_total",
			Help: "Battle snapshot scans by result (found, not_started, error).",
		}, []string{"result"}),
		SnapshotScanSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warz_snapshot_scan_seconds",
			Help:    "Wall time of a full on-chain battle scan.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warz_cache_hits_total",
			Help: "Cache hits by cache (snapshot_memory, snapshot_catalog, profile).",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warz_cache_misses_total",
			Help: "Cache misses by cache.",
		}, []string{"cache"}),
		HistoryPages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warz_history_pages_total",
			Help: "Transaction-history pages fetched from the enriched-history API.",
		}),
		HTTPRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warz_http_retries_total",
			Help: "Outbound HTTP attempts that failed.",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warz_http_requests_total",
			Help: "Inbound API requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warz_http_request_seconds",
			Help:    "Inbound API request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) ScanObserved(result string, seconds float64) {
	if m == nil {
		return
	}
	m.SnapshotScans.WithLabelValues(result).Inc()
	m.SnapshotScanSeconds.Observe(seconds)
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) PagesFetched(n int) {
	if m == nil {
		return
	}
	m.HistoryPages.Add(float64(n))
}

func (m *Metrics) RetryObserved() {
	if m == nil {
		return
	}
	m.HTTPRetries.Inc()
}

func (m *Metrics) RequestObserved(route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}
