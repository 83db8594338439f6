// Package metrics holds the Prometheus collectors shared by both HTTP
// adapters and the patient aggregation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	categoryFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patient_category_fetch_duration_seconds",
			Help:    "Duration of one clinical category fetch during full-record aggregation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"backend", "category"},
	)

	aggregationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_aggregation_failures_total",
			Help: "Full-record aggregations failed, by the category that failed first",
		},
		[]string{"category"},
	)

	copilotRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_requests_total",
			Help: "Copilot relay requests by outcome",
		},
		[]string{"outcome"},
	)

	auditPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_publish_failures_total",
			Help: "PHI access audit entries that could not be delivered to their sink",
		},
		[]string{"sink"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EchoMiddleware records request metrics labelled with the matched route
// template, so path parameters do not explode label cardinality.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			observeRequest(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}

// Middleware is the net/http form used by the function endpoints.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		observeRequest(r.Method, routePattern(r), wrapped.statusCode, time.Since(start))
	})
}

func observeRequest(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordCategoryFetch records one category fetch of a full-record aggregation.
func RecordCategoryFetch(backend, category string, d time.Duration) {
	categoryFetchDuration.WithLabelValues(backend, category).Observe(d.Seconds())
}

// RecordAggregationFailure counts an aggregation that failed on category.
func RecordAggregationFailure(category string) {
	aggregationFailures.WithLabelValues(category).Inc()
}

// Copilot relay outcomes.
const (
	CopilotOutcomeOK            = "ok"
	CopilotOutcomeInvalid       = "invalid"
	CopilotOutcomeUpstreamError = "upstream_error"
	CopilotOutcomeUnconfigured  = "unconfigured"
)

// RecordCopilotRequest counts a copilot relay call by outcome.
func RecordCopilotRequest(outcome string) {
	copilotRequests.WithLabelValues(outcome).Inc()
}

func RecordAuditPublishFailure(sink string) {
	auditPublishFailures.WithLabelValues(sink).Inc()
}
