// Package metrics provides Prometheus metrics for the fetcher and the task queue.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	OutcomeCacheHit  = "cache_hit"
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// Task outcomes.
const (
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
	TaskRetried   = "retried"
	TaskHalted    = "halted"
)

// PipelineMetrics contains all Prometheus metrics of the pipeline.
type PipelineMetrics struct {
	FetchRequests *prometheus.CounterVec
	FetchLatency  prometheus.Histogram
	FetchBytes    prometheus.Counter
	TaskRuns      *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	TasksInFlight prometheus.Gauge
	registry      *prometheus.Registry
}

// NewPipelineMetrics creates the metrics and registers them with registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

// NewUnregistered builds metrics on a private registry. Used by tests and
// components constructed without an explicit registry.
func NewUnregistered() *PipelineMetrics {
	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}

func (m *PipelineMetrics) initMetrics() {
	m.FetchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_fetch_requests_total",
		Help: "Total number of fetches by outcome",
	}, []string{"outcome"})

	m.FetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_fetch_latency_seconds",
		Help:    "Latency of network fetches in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.FetchBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_fetch_bytes_total",
		Help: "Total number of bytes fetched from the network",
	})

	m.TaskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_task_runs_total",
		Help: "Total number of task attempts by task and outcome",
	}, []string{"task", "outcome"})

	m.TaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_task_duration_seconds",
		Help:    "Duration of task attempts in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"task"})

	m.TasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_tasks_in_flight",
		Help: "Number of dispatched units of work not yet settled",
	})
}

// Registry is the registry the metrics were registered with.
func (m *PipelineMetrics) Registry() *prometheus.Registry { return m.registry }

// RecordFetch counts one fetch outcome.
func (m *PipelineMetrics) RecordFetch(outcome string, elapsed time.Duration, size int) {
	m.FetchRequests.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCacheHit {
		m.FetchLatency.Observe(elapsed.Seconds())
	}
	if size > 0 {
		m.FetchBytes.Add(float64(size))
	}
}

// RecordTask counts one task attempt.
func (m *PipelineMetrics) RecordTask(task, outcome string, elapsed time.Duration) {
	m.TaskRuns.WithLabelValues(task, outcome).Inc()
	m.TaskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FetchRequests.Describe(ch)
	m.FetchLatency.Describe(ch)
	m.FetchBytes.Describe(ch)
	m.TaskRuns.Describe(ch)
	m.TaskDuration.Describe(ch)
	m.TasksInFlight.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FetchRequests.Collect(ch)
	m.FetchLatency.Collect(ch)
	m.FetchBytes.Collect(ch)
	m.TaskRuns.Collect(ch)
	m.TaskDuration.Collect(ch)
	m.TasksInFlight.Collect(ch)
}
