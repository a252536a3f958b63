package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
	OutcomeInvalid = "invalid"
	OutcomeCached  = "cached"
)

var (
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_searches_total",
			Help: "Total number of searches by outcome",
		},
		[]string{"outcome"},
	)

	// Full searches drive a browser through every source, so buckets run
	// from a few seconds up to a couple of minutes.
	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricecompare_search_duration_seconds",
			Help:    "End-to-end search duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
		},
	)

	productsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricecompare_products_returned",
			Help:    "Number of ranked products per search",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 45, 60},
		},
	)

	sourceExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_source_extractions_total",
			Help: "Extractor invocations by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	sourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricecompare_source_duration_seconds",
			Help:    "Per-source extraction duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 15, 20, 30, 60},
		},
		[]string{"source"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_cache_lookups_total",
			Help: "Result cache lookups by result",
		},
		[]string{"result"},
	)

	taskEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_task_events_total",
			Help: "Async search task transitions by status",
		},
		[]string{"status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricecompare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)
)

// RecordSearch records one finished search
func RecordSearch(outcome string, products int, d time.Duration) {
	searchesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeCached {
		productsReturned.Observe(float64(products))
	}
	if outcome == OutcomeOK {
		searchDuration.Observe(d.Seconds())
	}
}

// RecordSource records one extractor invocation
func RecordSource(source, outcome string, d time.Duration) {
	sourceExtractions.WithLabelValues(source, outcome).Inc()
	if outcome != OutcomeSkipped {
		sourceDuration.WithLabelValues(source).Observe(d.Seconds())
	}
}

// RecordCacheLookup counts a cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// RecordTask counts a task status transition
func RecordTask(status string) {
	taskEvents.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records a served request
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
