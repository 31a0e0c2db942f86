// Package metrics provides Prometheus metrics for HTTP server monitoring
// and for the prescription domain: formula parsing outcomes, catalog
// rebuilds and survey session expiry.
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	FormulaParseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formula_parse_total",
			Help: "Formula text parse attempts by outcome (ok, ambiguous, not_found, invalid)",
		},
		[]string{"outcome"},
	)

	CatalogRebuildTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_rebuild_total",
			Help: "Catalog rebuilds by result (ok, failed, skipped)",
		},
		[]string{"result"},
	)

	CatalogTemplates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_templates",
			Help: "Number of resolved formula templates in the active catalog",
		},
	)

	SurveySessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "survey_sessions_expired_total",
			Help: "Survey sessions expired by the background sweep",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(FormulaParseTotal)
	prometheus.MustRegister(CatalogRebuildTotal)
	prometheus.MustRegister(CatalogTemplates)
	prometheus.MustRegister(SurveySessionsExpiredTotal)
}
