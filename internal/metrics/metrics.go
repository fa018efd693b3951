package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "unstructured_analytics_build_info",
			Help: "Build information of the unstructured-analytics API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unstructured_analytics_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unstructured_analytics_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unstructured_analytics_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Gemini API metrics
	GeminiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unstructured_analytics_gemini_requests_total",
			Help: "Total number of Gemini API requests",
		},
		[]string{"model", "status"},
	)

	GeminiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unstructured_analytics_gemini_request_duration_seconds",
			Help:    "Duration of Gemini API requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~410s
		},
		[]string{"model"},
	)

	GeminiTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unstructured_analytics_gemini_tokens_total",
			Help: "Total number of Gemini API tokens used",
		},
		[]string{"type"}, // "input", "output"
	)

	// Experiment metrics
	ExperimentRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unstructured_analytics_experiment_runs_total",
			Help: "Total number of experiment runs",
		},
		[]string{"format", "status"}, // status: "succeeded", "failed"
	)

	ComparisonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unstructured_analytics_comparisons_total",
			Help: "Total number of comparison experiments",
		},
	)

	// Ad-hoc SQL query metrics
	SQLQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unstructured_analytics_sql_queries_total",
			Help: "Total number of ad-hoc SQL queries",
		},
		[]string{"status"},
	)

	SQLQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unstructured_analytics_sql_query_duration_seconds",
			Help:    "Duration of ad-hoc SQL queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordGeminiRequest records metrics for a Gemini API request.
func RecordGeminiRequest(model string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	GeminiRequestsTotal.WithLabelValues(model, status).Inc()
	GeminiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordGeminiTokens records token usage for a Gemini API request.
func RecordGeminiTokens(inputTokens, outputTokens int64) {
	GeminiTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	GeminiTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// RecordExperimentRun records the outcome of a single experiment run.
func RecordExperimentRun(format string, succeeded bool) {
	status := "failed"
	if succeeded {
		status = "succeeded"
	}
	ExperimentRunsTotal.WithLabelValues(format, status).Inc()
}

// RecordSQLQuery records metrics for an ad-hoc SQL query.
func RecordSQLQuery(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SQLQueriesTotal.WithLabelValues(status).Inc()
	SQLQueryDuration.Observe(duration.Seconds())
}
