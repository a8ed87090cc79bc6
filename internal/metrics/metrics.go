// Package metrics exposes Prometheus collectors for the screener crawler.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlsTotal          *prometheus.CounterVec
	crawlDurationSeconds *prometheus.HistogramVec
	pagesParsedTotal     prometheus.Counter
	quotesExtractedTotal prometheus.Counter
	rowsDroppedTotal     prometheus.Counter
	cacheEventsTotal     *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_crawls_total",
				Help: "Total number of crawls, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_crawl_duration_seconds",
				Help:    "Histogram of crawl durations, labeled by source.",
				Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"source"},
		)

		pagesParsedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screener_pages_parsed_total",
				Help: "Total number of screener pages parsed.",
			},
		)

		quotesExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screener_quotes_extracted_total",
				Help: "Total number of quotes extracted from parsed pages.",
			},
		)

		rowsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screener_rows_dropped_total",
				Help: "Total number of malformed table rows dropped during parsing.",
			},
		)

		cacheEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_cache_events_total",
				Help: "Total cache events, labeled by operation and outcome.",
			},
			[]string{"op", "outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveCrawl records one finished crawl attempt.
func ObserveCrawl(source, status string, d time.Duration) {
	if crawlsTotal == nil {
		return
	}
	crawlsTotal.WithLabelValues(source, status).Inc()
	crawlDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObservePage records one parsed page and the quotes it yielded.
func ObservePage(quotes int) {
	if pagesParsedTotal == nil {
		return
	}
	pagesParsedTotal.Inc()
	quotesExtractedTotal.Add(float64(quotes))
}

// ObserveDroppedRow records a malformed row excluded during parsing.
func ObserveDroppedRow() {
	if rowsDroppedTotal == nil {
		return
	}
	rowsDroppedTotal.Inc()
}

// ObserveCacheEvent records a cache interaction outcome such as
// ("get", "hit") or ("set", "error").
func ObserveCacheEvent(op, outcome string) {
	if cacheEventsTotal == nil {
		return
	}
	cacheEventsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveHTTPRequest records a served HTTP request.
func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, code).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
