// Package metrics holds the process's Prometheus collectors. Collectors are
// registered on the default registry at init, and Handler exposes them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobRuns counts scheduled-job ticks by outcome (published, queued, disabled...).
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopost_job_runs_total",
		Help: "Scheduled job ticks by outcome.",
	}, []string{"outcome"})

	// JobDuration observes tick wall time.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autopost_job_duration_seconds",
		Help:    "Scheduled job tick duration in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})

	// PublishAttempts counts publish attempts by source and status.
	PublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopost_publish_attempts_total",
		Help: "Publish attempts by source (manual, scheduled, approved) and status.",
	}, []string{"source", "status"})

	// PendingQueued counts posts placed in the approval queue.
	PendingQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopost_pending_queued_total",
		Help: "Posts queued for approval.",
	})

	// GeocodeCacheHits and GeocodeCacheMisses track the in-memory reverse geocode memo.
	GeocodeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopost_geocode_cache_hits_total",
		Help: "Reverse geocode memo hits.",
	})
	GeocodeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopost_geocode_cache_misses_total",
		Help: "Reverse geocode memo misses.",
	})

	// LocationCacheLookups counts durable location-cache lookups by result (hit, miss).
	LocationCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopost_location_cache_lookups_total",
		Help: "Durable location cache lookups by result.",
	}, []string{"result"})

	// APIKeyValidations counts start-up Gemini key checks by result.
	APIKeyValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopost_api_key_validations_total",
		Help: "Gemini API key validation results.",
	}, []string{"result"})

	// CaptionRequests counts caption generation calls by backend and status.
	CaptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopost_caption_requests_total",
		Help: "Caption generation calls by backend and status.",
	}, []string{"backend", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopost_http_requests_total",
		Help: "HTTP requests by method, route pattern, and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autopost_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. The route label is the
// ServeMux pattern that matched, so path parameters do not explode label
// cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
