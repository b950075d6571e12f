// Package metrics defines the Prometheus metric collectors used by the
// indexing front-end and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the indexing front-end.
type Metrics struct {
	DocsAnalyzedTotal    *prometheus.CounterVec
	AnalysisErrorsTotal  *prometheus.CounterVec
	PostingsTotal        prometheus.Counter
	CommandsTotal        *prometheus.CounterVec
	CommandErrorsTotal   *prometheus.CounterVec
	StreamDuration       prometheus.Histogram
	StreamResultsCount   prometheus.Histogram
	ActivePartitions     prometheus.Gauge
	DocCacheHitsTotal    prometheus.Counter
	DocCacheMissesTotal  prometheus.Counter
	DocsStoredTotal      *prometheus.CounterVec
	IngestLagSeconds     prometheus.Histogram
	ObjectStoreErrsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocsAnalyzedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_analyzed_total",
				Help: "Total documents analyzed, by index.",
			},
			[]string{"index"},
		),
		AnalysisErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_errors_total",
				Help: "Total analysis failures by reason (schema, analyzer).",
			},
			[]string{"reason"},
		),
		PostingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_generated_total",
				Help: "Total posting records generated from analyzed documents.",
			},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partition_commands_total",
				Help: "Total partition commands dispatched, by kind.",
			},
			[]string{"kind"},
		),
		CommandErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partition_command_errors_total",
				Help: "Total partition command failures, by kind.",
			},
			[]string{"kind"},
		),
		StreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stream_duration_seconds",
				Help:    "Duration of partition streaming reads in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),
		StreamResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stream_results_count",
				Help:    "Number of results emitted per streaming read.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000},
			},
		),
		ActivePartitions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_partitions",
				Help: "Number of partition routers currently active.",
			},
		),
		DocCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doc_cache_hits_total",
				Help: "Total document cache hits.",
			},
		),
		DocCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doc_cache_misses_total",
				Help: "Total document cache misses.",
			},
		),
		DocsStoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_stored_total",
				Help: "Total documents written to the object store, by outcome (created, updated).",
			},
			[]string{"outcome"},
		),
		IngestLagSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_handle_duration_seconds",
				Help:    "End-to-end handling time of one ingest event in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		ObjectStoreErrsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "object_store_errors_total",
				Help: "Total object store operation failures, by operation.",
			},
			[]string{"op"},
		),
	}

	prometheus.MustRegister(
		m.DocsAnalyzedTotal,
		m.AnalysisErrorsTotal,
		m.PostingsTotal,
		m.CommandsTotal,
		m.CommandErrorsTotal,
		m.StreamDuration,
		m.StreamResultsCount,
		m.ActivePartitions,
		m.DocCacheHitsTotal,
		m.DocCacheMissesTotal,
		m.DocsStoredTotal,
		m.IngestLagSeconds,
		m.ObjectStoreErrsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
