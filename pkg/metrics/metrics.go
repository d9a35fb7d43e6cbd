// Package metrics defines the Prometheus metric collectors used across the
// indexer and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for one process. Each instance owns
// its registry, so tests and embedded stores never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	StoreInsertsTotal   prometheus.Counter
	StoreGetsTotal      prometheus.Counter
	StoreBatchesTotal   *prometheus.CounterVec
	StoreCommitDuration prometheus.Histogram
	StoreIngestsTotal   *prometheus.CounterVec

	ItemsTotal          *prometheus.CounterVec
	FallbacksTotal      *prometheus.CounterVec
	DocsIndexedTotal    prometheus.Counter
	PipelineQueueLength prometheus.Gauge

	BulkRecordsTotal prometheus.Counter
	BulkFilesTotal   *prometheus.CounterVec

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	SearchResultsCount prometheus.Histogram

	CatalogCacheTotal   *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		StoreInsertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hugin_store_inserts_total",
				Help: "Merge operations applied to the online index.",
			},
		),
		StoreGetsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hugin_store_gets_total",
				Help: "Point lookups served by the online index.",
			},
		),
		StoreBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_store_batches_total",
				Help: "Document batches committed to the online index by status.",
			},
			[]string{"status"},
		),
		StoreCommitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hugin_store_commit_duration_seconds",
				Help:    "Time from batch acceptance to durable commit.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		StoreIngestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_store_ingests_total",
				Help: "Bulk artifact ingestions by status.",
			},
			[]string{"status"},
		),
		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_pipeline_items_total",
				Help: "Crawled items by kind (file, folder) and outcome (indexed, failed).",
			},
			[]string{"kind", "outcome"},
		),
		FallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_pipeline_fallbacks_total",
				Help: "Items indexed under name-derived content by reason.",
			},
			[]string{"reason"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hugin_docs_indexed_total",
				Help: "Documents committed by the pipeline.",
			},
		),
		PipelineQueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hugin_pipeline_pending_results",
				Help: "Items resolved but not yet batched.",
			},
		),
		BulkRecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hugin_bulk_records_total",
				Help: "Records written to sorted bulk artifacts.",
			},
		),
		BulkFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_bulk_files_total",
				Help: "Bulk artifact builds by status.",
			},
			[]string{"status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hugin_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hugin_search_results_count",
				Help:    "Number of hits returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CatalogCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_catalog_cache_total",
				Help: "Catalog lookups by cache outcome (hit, miss).",
			},
			[]string{"outcome"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hugin_notifications_total",
				Help: "Commit notifications by status (ok, error, rejected).",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StoreInsertsTotal,
		m.StoreGetsTotal,
		m.StoreBatchesTotal,
		m.StoreCommitDuration,
		m.StoreIngestsTotal,
		m.ItemsTotal,
		m.FallbacksTotal,
		m.DocsIndexedTotal,
		m.PipelineQueueLength,
		m.BulkRecordsTotal,
		m.BulkFilesTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CatalogCacheTotal,
		m.NotificationsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
