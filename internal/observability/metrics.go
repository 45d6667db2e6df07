package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// Metrics collects the service's Prometheus metrics.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	decisions        *prometheus.CounterVec
	faceScores       prometheus.Histogram
	enrollments      *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

// NewMetrics initialises the registry and the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mfa_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_login_decisions_total",
		Help: "Login decisions by outcome and reason.",
	}, []string{"outcome", "reason"})
	faceScores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mfa_login_face_score",
		Help:    "Face confidence observed at login when a face sample was supplied.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_enrollments_total",
		Help: "Enrollment attempts by channel and result.",
	}, []string{"channel", "result"})
	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_provider_calls_total",
		Help: "Biometric provider calls by channel, operation and result.",
	}, []string{"channel", "op", "result"})
	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mfa_provider_call_duration_seconds",
		Help:    "Biometric provider call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"channel", "op"})
	registry.MustRegister(requests, duration, decisions, faceScores, enrollments, providerCalls, providerDuration,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		decisions:        decisions,
		faceScores:       faceScores,
		enrollments:      enrollments,
		providerCalls:    providerCalls,
		providerDuration: providerDuration,
	}
}

// Handler returns the http.Handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveDecision counts a login decision. faceSampled reports whether a face score was computed.
func (m *Metrics) ObserveDecision(outcome, reason string, faceScore float64, faceSampled bool) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome, reason).Inc()
	if faceSampled {
		m.faceScores.Observe(faceScore)
	}
}

// ObserveEnrollment counts an enrollment attempt.
func (m *Metrics) ObserveEnrollment(channel string, err error) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(channel, resultLabel(err)).Inc()
}

// ObserveProviderCall records one provider round trip.
func (m *Metrics) ObserveProviderCall(channel, op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(channel, op, resultLabel(err)).Inc()
	m.providerDuration.WithLabelValues(channel, op).Observe(elapsed.Seconds())
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrUpstream):
		return "unavailable"
	case errors.Is(err, shared.ErrUnprocessable):
		return "rejected"
	default:
		if code := shared.CodeOf(err); code != "" {
			return code
		}
		return "error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
