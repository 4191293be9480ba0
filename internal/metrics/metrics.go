// Package metrics exposes Prometheus collectors for the feedlint service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal                  *prometheus.CounterVec
	fetchBytesTotal            prometheus.Counter
	fetchDurationSeconds       prometheus.Histogram
	eventsTotal                *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlint_runs_total",
				Help: "Total validation runs, labeled by outcome and detected feed type.",
			},
			[]string{"outcome", "feed_type"},
		)

		fetchBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feedlint_fetch_bytes_total",
				Help: "Total bytes fetched from remote feeds.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feedlint_fetch_duration_seconds",
				Help:    "Histogram of feed fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		eventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlint_events_total",
				Help: "Total diagnostics emitted, labeled by severity.",
			},
			[]string{"severity"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records one completed validation run.
func ObserveRun(outcome, feedType string) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(outcome, feedType).Inc()
}

// ObserveFetch records the size and latency of one remote fetch.
func ObserveFetch(bytesFetched int, duration time.Duration) {
	if fetchBytesTotal == nil || fetchDurationSeconds == nil {
		return
	}
	if bytesFetched > 0 {
		fetchBytesTotal.Add(float64(bytesFetched))
	}
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveEvent counts one emitted diagnostic by severity.
func ObserveEvent(severity string) {
	if eventsTotal == nil {
		return
	}
	eventsTotal.WithLabelValues(severity).Inc()
}

// statusRecorder captures the response code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latencies for the API router.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
			return
		}
		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
