// Package metrics registers the Prometheus instruments for pipeline
// activity. Each Metrics value owns its registry, so tests never collide on
// global collector state.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline instruments.
type Metrics struct {
	registry *prometheus.Registry

	sessionsTotal       *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	kernelDecisions     *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	activeRuns          prometheus.Gauge
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mopd_sessions_total",
			Help: "Finished pipeline sessions by terminal status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mopd_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		kernelDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mopd_kernel_decisions_total",
			Help: "Kernel gate consults by verdict.",
		}, []string{"verdict"}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mopd_persistence_failures_total",
			Help: "Terminal records that could not be written after retries.",
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mopd_active_runs",
			Help: "Pipeline runs currently in flight.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsTotal,
		m.stageDuration,
		m.kernelDecisions,
		m.persistenceFailures,
		m.activeRuns,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted marks a run in flight.
func (m *Metrics) RunStarted() {
	m.activeRuns.Inc()
}

// RunFinished marks a run done and counts its terminal status.
func (m *Metrics) RunFinished(status string) {
	m.activeRuns.Dec()
	m.sessionsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records one stage's wall time.
func (m *Metrics) ObserveStage(agent string, d time.Duration) {
	m.stageDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// KernelDecision counts a gate consult by verdict.
func (m *Metrics) KernelDecision(verdict string) {
	m.kernelDecisions.WithLabelValues(verdict).Inc()
}

// PersistenceFailure counts a record write that failed after retries.
func (m *Metrics) PersistenceFailure() {
	m.persistenceFailures.Inc()
}
