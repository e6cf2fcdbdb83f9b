// Package metrics registers the Prometheus collectors the cache engine and
// transport layers report through: transaction outcomes, bytes written per
// kind, read-stream opens, and reliability-filter admissions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated prometheus.Registry so the cache's metrics
// never collide with whatever default registry the embedding process uses.
type Registry struct {
	reg *prometheus.Registry

	TransactionsTotal *prometheus.CounterVec
	BytesWritten      *prometheus.CounterVec
	ReadStreamsOpened prometheus.Counter
	ReliabilityEvents *prometheus.CounterVec
	MemoryPageCount   prometheus.Gauge
	MemoryFreeBytes   prometheus.Gauge
}

// New creates a Registry and registers every collector against it.
func New() *Registry {
	reg := prometheus.NewRegistry()

	return &Registry{
		reg: reg,
		TransactionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetcache_transactions_total",
				Help: "Total number of put-transactions by outcome (committed, failed, error).",
			},
			[]string{"outcome"},
		),
		BytesWritten: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetcache_bytes_written_total",
				Help: "Total bytes committed, labeled by file kind (i, a, r).",
			},
			[]string{"kind"},
		),
		ReadStreamsOpened: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "assetcache_read_streams_opened_total",
				Help: "Total number of GetFileStream calls that returned a stream.",
			},
		),
		ReliabilityEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetcache_reliability_events_total",
				Help: "Reliability filter events by kind (admission, observed without admission).",
			},
			[]string{"event"},
		),
		MemoryPageCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "assetcache_memory_page_count",
				Help: "Current number of allocated pages in the memory backend.",
			},
		),
		MemoryFreeBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "assetcache_memory_free_bytes",
				Help: "Current number of free bytes across the memory backend's pages.",
			},
		),
	}
}

// Handler exposes the registry's collectors over HTTP in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
