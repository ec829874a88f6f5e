// Package metrics provides Prometheus metrics for the GradePredict console client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the client.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Backend transport metrics
	backendRequests        *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	backendTransportErrors prometheus.Counter
	requestsInFlight       prometheus.Gauge

	// Session lifecycle metrics
	loginAttempts    *prometheus.CounterVec
	captchaRefreshes prometheus.Counter
	logouts          prometheus.Counter

	// Roster workflow metrics
	rosterReloads   prometheus.Counter
	rosterSize      prometheus.Gauge
	rosterMutations *prometheus.CounterVec
	predictions     *prometheus.CounterVec
	staleResponses  prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Registry returns the registry backing the global manager, for exposition.
func Registry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradepredict",
		subsystem:        "console",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.backendRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "backend_requests_total",
		Help:      "Backend HTTP requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	m.backendRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "backend_request_duration_seconds",
		Help:      "Backend HTTP request latency by endpoint",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint"})

	m.backendTransportErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "backend_transport_errors_total",
		Help:      "Requests that failed before an HTTP status was received",
	})

	m.requestsInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "backend_requests_in_flight",
		Help:      "Backend requests currently outstanding",
	})

	m.loginAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome (success, rejected, validation)",
	}, []string{"outcome"})

	m.captchaRefreshes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "captcha_refreshes_total",
		Help:      "Captcha challenges fetched (initial, manual, and post-failure)",
	})

	m.logouts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "logouts_total",
		Help:      "Logout actions, including the bootstrap session clear",
	})

	m.rosterReloads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "roster_reloads_total",
		Help:      "Full roster fetches, including post-mutation reloads",
	})

	m.rosterSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "roster_size",
		Help:      "Student records currently cached",
	})

	m.rosterMutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "roster_mutations_total",
		Help:      "Roster mutations by kind (add, update, remove) and outcome",
	}, []string{"kind", "outcome"})

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_total",
		Help:      "Prediction requests by outcome",
	}, []string{"outcome"})

	m.staleResponses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stale_responses_dropped_total",
		Help:      "Responses discarded because a newer request superseded them",
	})
}

// Package-level helpers against the global manager.

// RecordBackendRequest records one completed backend call.
func RecordBackendRequest(endpoint, outcome string, duration time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.backendRequests.WithLabelValues(endpoint, outcome).Inc()
	globalManager.backendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTransportError records a request that never produced an HTTP status.
func RecordTransportError() {
	if globalManager.enabled {
		globalManager.backendTransportErrors.Inc()
	}
}

// RequestStarted and RequestFinished track the in-flight gauge.
func RequestStarted() {
	if globalManager.enabled {
		globalManager.requestsInFlight.Inc()
	}
}

func RequestFinished() {
	if globalManager.enabled {
		globalManager.requestsInFlight.Dec()
	}
}

// RecordLoginAttempt records a login attempt outcome.
func RecordLoginAttempt(outcome string) {
	if globalManager.enabled {
		globalManager.loginAttempts.WithLabelValues(outcome).Inc()
	}
}

// RecordCaptchaRefresh records a captcha challenge fetch.
func RecordCaptchaRefresh() {
	if globalManager.enabled {
		globalManager.captchaRefreshes.Inc()
	}
}

// RecordLogout records a logout action.
func RecordLogout() {
	if globalManager.enabled {
		globalManager.logouts.Inc()
	}
}

// RecordRosterReload records a full roster fetch.
func RecordRosterReload(size int) {
	if globalManager.enabled {
		globalManager.rosterReloads.Inc()
		globalManager.rosterSize.Set(float64(size))
	}
}

// RecordRosterMutation records a create/update/delete outcome.
func RecordRosterMutation(kind, outcome string) {
	if globalManager.enabled {
		globalManager.rosterMutations.WithLabelValues(kind, outcome).Inc()
	}
}

// RecordPrediction records a prediction request outcome.
func RecordPrediction(outcome string) {
	if globalManager.enabled {
		globalManager.predictions.WithLabelValues(outcome).Inc()
	}
}

// RecordStaleResponse records a dropped out-of-date response.
func RecordStaleResponse() {
	if globalManager.enabled {
		globalManager.staleResponses.Inc()
	}
}
