// Package metrics provides Prometheus metrics for the portal pipeline.
// All recording methods are safe on a nil *Manager, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Risk trigger outcomes.
const (
	RiskWritten          = "written"
	RiskSkippedUnchanged = "skipped_unchanged"
	RiskSkippedDeleted   = "skipped_deleted"
	RiskSkippedInvalid   = "skipped_invalid"
	RiskFailed           = "failed"
)

// Manager owns the pipeline's collectors and the registry they live in.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry
	goCollectors     bool

	callableRequests *prometheus.CounterVec
	callableDuration *prometheus.HistogramVec

	riskRecomputes   *prometheus.CounterVec
	readinessScores  prometheus.Histogram
	roleAssignments  *prometheus.CounterVec
	roleMirrorRepair prometheus.Counter

	eventsPublished *prometheus.CounterVec
	eventHandling   *prometheus.HistogramVec

	jobRuns *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for latency histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry sets the registry collectors are registered on.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.goCollectors = true
	}
}

// NewManager creates a metrics manager on a private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "portal",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	if m.goCollectors {
		m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m.callableRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "callable",
		Name:      "requests_total",
		Help:      "Callable invocations by outcome category",
	}, []string{"callable", "code"})

	m.callableDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "callable",
		Name:      "duration_seconds",
		Help:      "Callable latency",
		Buckets:   m.histogramBuckets,
	}, []string{"callable"})

	m.riskRecomputes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "risk",
		Name:      "trigger_total",
		Help:      "Risk trigger invocations by outcome",
	}, []string{"outcome"})

	m.readinessScores = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "readiness",
		Name:      "score",
		Help:      "Distribution of computed placement readiness scores",
		Buckets:   []float64{20, 40, 60, 80, 100, 120},
	})

	m.roleAssignments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "roles",
		Name:      "assignments_total",
		Help:      "Role assignments by outcome (ok, claims_failed, mirror_failed)",
	}, []string{"outcome"})

	m.roleMirrorRepair = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "roles",
		Name:      "mirror_repairs_total",
		Help:      "Account role mirrors rewritten by the reconciler",
	})

	m.eventsPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events published",
	}, []string{"type"})

	m.eventHandling = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "events",
		Name:      "handler_duration_seconds",
		Help:      "Event handler latency",
		Buckets:   m.histogramBuckets,
	}, []string{"type", "success"})

	m.jobRuns = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Scheduled job run time",
		Buckets:   m.histogramBuckets,
	}, []string{"job", "success"})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCallable records one callable invocation.
func (m *Manager) ObserveCallable(callable, code string, d time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.callableRequests.WithLabelValues(callable, code).Inc()
	m.callableDuration.WithLabelValues(callable).Observe(d.Seconds())
}

// RiskTrigger records a risk trigger outcome.
func (m *Manager) RiskTrigger(outcome string) {
	if m == nil {
		return
	}
	m.riskRecomputes.WithLabelValues(outcome).Inc()
}

// ReadinessScore records a computed readiness score.
func (m *Manager) ReadinessScore(score int) {
	if m == nil {
		return
	}
	m.readinessScores.Observe(float64(score))
}

// RoleAssignment records a role assignment outcome.
func (m *Manager) RoleAssignment(outcome string) {
	if m == nil {
		return
	}
	m.roleAssignments.WithLabelValues(outcome).Inc()
}

// RoleMirrorRepaired records n repaired account mirrors.
func (m *Manager) RoleMirrorRepaired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.roleMirrorRepair.Add(float64(n))
}

// EventPublished records a published event.
func (m *Manager) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// EventHandled records an event handler execution.
func (m *Manager) EventHandled(eventType string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	ok := "true"
	if !success {
		ok = "false"
	}
	m.eventHandling.WithLabelValues(eventType, ok).Observe(d.Seconds())
}

// JobRun records one scheduled job execution.
func (m *Manager) JobRun(job string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Observe(d.Seconds())
}
