package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Autofill metrics
	AutofillRunsTotal *prometheus.CounterVec
	AutofillDuration  prometheus.Histogram
	FieldsDetected    prometheus.Histogram
	FieldsFilled      prometheus.Histogram
	FillFailures      *prometheus.CounterVec
	FramesSkipped     *prometheus.CounterVec
	CommRetries       prometheus.Counter

	// Mapping and profile metrics
	MappingLoads     *prometheus.CounterVec
	MappingRules     prometheus.Gauge
	ProfileStoreOps  *prometheus.CounterVec
	ProfileStoreTime *prometheus.HistogramVec

	registry prometheus.Gatherer
}

// NewMetrics creates a metrics instance registered on reg. A nil reg uses a
// fresh private registry so that several instances can coexist in tests.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "jobfill"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		// Autofill metrics
		AutofillRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autofill_runs_total",
				Help:      "Total number of autofill runs by outcome",
			},
			[]string{"outcome"}, // filled, no_profile, no_fields, detection_error, error, unreachable
		),
		AutofillDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "autofill_duration_seconds",
				Help:      "Autofill run duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		FieldsDetected: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "autofill_fields_detected",
				Help:      "Number of candidate fields detected per run",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 35, 50},
			},
		),
		FieldsFilled: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "autofill_fields_filled",
				Help:      "Number of fields filled per run",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 35, 50},
			},
		),
		FillFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autofill_fill_failures_total",
				Help:      "Candidates that could not be filled, by control kind",
			},
			[]string{"kind"},
		),
		FramesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autofill_frames_skipped_total",
				Help:      "Frames skipped as unreachable",
			},
			[]string{"reason"},
		),
		CommRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autofill_comm_retries_total",
				Help:      "Page communication failures retried after reinjection",
			},
		),

		// Mapping and profile metrics
		MappingLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mapping_loads_total",
				Help:      "Mapping table load attempts",
			},
			[]string{"source", "status"},
		),
		MappingRules: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mapping_rules",
				Help:      "Number of rules in the loaded mapping table",
			},
		),
		ProfileStoreOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_store_operations_total",
				Help:      "Profile store operations",
			},
			[]string{"backend", "op", "status"},
		),
		ProfileStoreTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "profile_store_duration_seconds",
				Help:      "Profile store operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"backend", "op"},
		),

		registry: reg,
	}

	return m
}

// Handler returns the Prometheus HTTP handler for this instance's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAutofillRun records the outcome of one autofill run
func (m *Metrics) RecordAutofillRun(outcome string, detected, filled int, duration time.Duration) {
	if m == nil {
		return
	}
	m.AutofillRunsTotal.WithLabelValues(outcome).Inc()
	m.AutofillDuration.Observe(duration.Seconds())
	m.FieldsDetected.Observe(float64(detected))
	m.FieldsFilled.Observe(float64(filled))
}

// RecordFillFailure records a candidate that was not filled
func (m *Metrics) RecordFillFailure(kind string) {
	if m == nil {
		return
	}
	m.FillFailures.WithLabelValues(kind).Inc()
}

// RecordFrameSkipped records a frame that could not be searched
func (m *Metrics) RecordFrameSkipped(reason string) {
	if m == nil {
		return
	}
	m.FramesSkipped.WithLabelValues(reason).Inc()
}

// RecordCommRetry records a page communication retry
func (m *Metrics) RecordCommRetry() {
	if m == nil {
		return
	}
	m.CommRetries.Inc()
}

// RecordMappingLoad records a mapping table load attempt
func (m *Metrics) RecordMappingLoad(source string, err error, rules int) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MappingLoads.WithLabelValues(source, status).Inc()
	m.MappingRules.Set(float64(rules))
}

// RecordProfileStoreOp records a profile store operation
func (m *Metrics) RecordProfileStoreOp(backend, op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProfileStoreOps.WithLabelValues(backend, op, status).Inc()
	m.ProfileStoreTime.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		m.RecordHTTPRequest(r.Method, path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
