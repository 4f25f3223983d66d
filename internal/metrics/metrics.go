// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHitsTotal counts completions served from the prompt cache.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prompt_cache_hits_total",
			Help: "Total number of completions served from the prompt cache.",
		},
	)

	// CacheMissesTotal counts completions that had to go upstream.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prompt_cache_misses_total",
			Help: "Total number of completions that missed the prompt cache.",
		},
	)

	// CompletionDurationSeconds observes upstream completion latency per mode.
	CompletionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_duration_seconds",
			Help:    "Upstream completion latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	// HTTPLatencySeconds observes API request latency.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "HTTP request latency for the API in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register registers all service metrics; call it once at startup.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CompletionDurationSeconds,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures API latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		HTTPLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
