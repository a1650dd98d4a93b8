// Package metrics defines the Prometheus metric collectors used by the index
// builder and the search service and exposes an HTTP handler for scraping.
// Every recording method is safe to call on a nil *Metrics so the core
// pipeline can run without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	BuildPhaseDuration   *prometheus.HistogramVec
	BlocksMappedTotal    prometheus.Counter
	TermsMergedTotal     prometheus.Counter
	PostingsMergedTotal  prometheus.Counter
	MergePassesTotal     prometheus.Counter
	IndexLookupsTotal    *prometheus.CounterVec
	IndexTerms           prometheus.Gauge
	IndexReloadsTotal    *prometheus.CounterVec
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
}

// New creates all collectors and registers them with reg, or with the
// default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
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
		BuildPhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bsbi_build_phase_duration_seconds",
				Help:    "Duration of each index build phase (dictionary, map, merge, finalize).",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"phase"},
		),
		BlocksMappedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_blocks_mapped_total",
				Help: "Total blocks written as partial posting files.",
			},
		),
		TermsMergedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_terms_merged_total",
				Help: "Total posting list records written by the external merger.",
			},
		),
		PostingsMergedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_postings_merged_total",
				Help: "Total postings written by the external merger.",
			},
		),
		MergePassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_merge_passes_total",
				Help: "Total k-way merge passes, including intermediate fan-in passes.",
			},
		),
		IndexLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_lookups_total",
				Help: "Posting list lookups by store mode and result (hit, unknown_term, error).",
			},
			[]string{"mode", "result"},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms in the served index generation.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_reloads_total",
				Help: "Index generation swaps by status.",
			},
			[]string{"status"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by engine and result type (ok, zero_result, error).",
			},
			[]string{"engine", "result_type"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"engine"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.BuildPhaseDuration,
		m.BlocksMappedTotal,
		m.TermsMergedTotal,
		m.PostingsMergedTotal,
		m.MergePassesTotal,
		m.IndexLookupsTotal,
		m.IndexTerms,
		m.IndexReloadsTotal,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.BuildPhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) BlockMapped() {
	if m == nil {
		return
	}
	m.BlocksMappedTotal.Inc()
}

func (m *Metrics) Merged(terms, postings int) {
	if m == nil {
		return
	}
	m.MergePassesTotal.Inc()
	m.TermsMergedTotal.Add(float64(terms))
	m.PostingsMergedTotal.Add(float64(postings))
}

func (m *Metrics) IndexLookup(mode, result string) {
	if m == nil {
		return
	}
	m.IndexLookupsTotal.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) IndexLoaded(terms int) {
	if m == nil {
		return
	}
	m.IndexTerms.Set(float64(terms))
}

func (m *Metrics) IndexReloaded(status string) {
	if m == nil {
		return
	}
	m.IndexReloadsTotal.WithLabelValues(status).Inc()
}

// QueryServed records one finished query. A nil error with zero hits counts
// as zero_result.
func (m *Metrics) QueryServed(engine string, hits int, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case hits == 0:
		result = "zero_result"
	}
	m.QueriesTotal.WithLabelValues(engine, result).Inc()
	m.QueryLatency.WithLabelValues(engine).Observe(d.Seconds())
	if err == nil {
		m.QueryResultsCount.Observe(float64(hits))
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
