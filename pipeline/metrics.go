package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus instrumentation for a running Engine: how
// often each executor is invoked, how long invocations take, how deep a
// mailbox backs up mid-run, and how many dispatch iterations a run takes
// before draining. Metrics are namespaced "contentflow" and labeled by
// pipeline_name and executor_id so a single registry can serve many
// pipelines.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	mailboxDep  *prometheus.GaugeVec
	iterations  *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers every contentflow metric with registry. Pass
// prometheus.DefaultRegisterer to use the global registry, or a fresh
// prometheus.NewRegistry() to isolate metrics for tests.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentflow",
			Name:      "executor_invocations_total",
			Help:      "Number of times an executor's ProcessInput has been invoked",
		}, []string{"pipeline_name", "executor_id", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contentflow",
			Name:      "executor_duration_seconds",
			Help:      "Executor invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline_name", "executor_id"}),
		mailboxDep: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "contentflow",
			Name:      "mailbox_depth",
			Help:      "Pending messages queued for an executor mid-run",
		}, []string{"pipeline_name", "executor_id"}),
		iterations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentflow",
			Name:      "run_iterations_total",
			Help:      "Cumulative dispatch iterations across runs of a pipeline",
		}, []string{"pipeline_name"}),
	}
}

// RecordInvocation records one executor invocation's outcome and duration.
// status is "success" or "error".
func (m *Metrics) RecordInvocation(pipelineName, executorID, status string, d time.Duration) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.invocations.WithLabelValues(pipelineName, executorID, status).Inc()
	m.duration.WithLabelValues(pipelineName, executorID).Observe(d.Seconds())
}

// SetMailboxDepth reports the current queue length for an executor.
func (m *Metrics) SetMailboxDepth(pipelineName, executorID string, depth int) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.mailboxDep.WithLabelValues(pipelineName, executorID).Set(float64(depth))
}

// IncrementIterations increments the dispatch-iteration counter for a run.
func (m *Metrics) IncrementIterations(pipelineName string) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.iterations.WithLabelValues(pipelineName).Inc()
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable stops metric recording without unregistering collectors, useful
// for tests that want a Metrics value without side effects.
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable re-enables metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
