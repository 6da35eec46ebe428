package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the collection of Prometheus collectors exposed by the server.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	BookingsCreated    *prometheus.CounterVec
	BookingsCancelled  *prometheus.CounterVec
	BookingsRejected   *prometheus.CounterVec
	SchemaSaves        *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
	SyncRuns           *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quill_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.BookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_bookings_created_total",
			Help: "Bookings created from public form submissions",
		},
		[]string{"event_id"},
	)

	m.BookingsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_bookings_cancelled_total",
			Help: "Bookings cancelled by an operator",
		},
		[]string{"event_id"},
	)

	m.BookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_bookings_rejected_total",
			Help: "Booking submissions rejected before persistence",
		},
		[]string{"reason"},
	)

	m.SchemaSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_schema_saves_total",
			Help: "Field set saves by kind (replace or patch) and outcome",
		},
		[]string{"kind", "outcome"},
	)

	m.ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_validation_failures_total",
			Help: "Field-level validation failures by rule target",
		},
		[]string{"target"},
	)

	m.EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_events_published_total",
			Help: "Audit events published to the bus",
		},
		[]string{"topic"},
	)

	m.SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_sync_runs_total",
			Help: "Backup sync runs by outcome (ok, unchanged, error)",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsCreated,
		m.BookingsCancelled,
		m.BookingsRejected,
		m.SchemaSaves,
		m.ValidationFailures,
		m.EventsPublished,
		m.SyncRuns,
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records a request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		// ServeMux fills in Pattern on match; raw paths would explode cardinality.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordValidation counts n validation failures against target ("schema" or "answer").
func (m *Metrics) RecordValidation(target string, n int) {
	if n > 0 {
		m.ValidationFailures.WithLabelValues(target).Add(float64(n))
	}
}

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers (SSE) flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
