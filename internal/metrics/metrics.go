// Package metrics exposes Prometheus instrumentation for the generation
// pipeline and the webhook server. All recording methods are safe to call on
// a nil *Metrics, which records nothing.
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

const namespace = "storytotest"

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	WebhookRequests    *prometheus.CounterVec
	WorkflowRuns       *prometheus.CounterVec
	WorkflowDuration   prometheus.Histogram
	ValidationAttempts *prometheus.CounterVec
	ValidationLoops    *prometheus.CounterVec
	TestRunDuration    prometheus.Histogram
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		WebhookRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Webhook deliveries by response status.",
		}, []string{"status"}),
		WorkflowRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Publish workflow runs by result.",
		}, []string{"result"}),
		WorkflowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Wall time of publish workflow runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		ValidationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_attempts_total",
			Help:      "Generate-and-run attempts by result.",
		}, []string{"result"}),
		ValidationLoops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_loops_total",
			Help:      "Completed validation loops by final pass state.",
		}, []string{"passed"}),
		TestRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_run_duration_seconds",
			Help:      "Wall time of generated test executions.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// Attempt results recorded by ObserveAttempt.
const (
	ResultPassed = "passed"
	ResultFailed = "failed"
	ResultError  = "error"
)

// Workflow results recorded by ObserveWorkflow.
const (
	WorkflowSuccess = "success"
	WorkflowFailure = "failure"
)

// ObserveWebhook counts one webhook response.
func (m *Metrics) ObserveWebhook(status int) {
	if m == nil {
		return
	}
	m.WebhookRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveWorkflow records one finished publish workflow run.
func (m *Metrics) ObserveWorkflow(success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := WorkflowFailure
	if success {
		result = WorkflowSuccess
	}
	m.WorkflowRuns.WithLabelValues(result).Inc()
	m.WorkflowDuration.Observe(d.Seconds())
}

// ObserveAttempt records one validation attempt.
func (m *Metrics) ObserveAttempt(result string, testRun time.Duration) {
	if m == nil {
		return
	}
	m.ValidationAttempts.WithLabelValues(result).Inc()
	if result != ResultError {
		m.TestRunDuration.Observe(testRun.Seconds())
	}
}

// ObserveLoop records one finished validation loop.
func (m *Metrics) ObserveLoop(passed bool) {
	if m == nil {
		return
	}
	m.ValidationLoops.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
