// Package metrics provides concrete metric backends for the burstbuf state engine.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	coremetrics "github.com/tigerroll/burstbuf/pkg/bb/core/metrics"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Checkpoint metrics
	checkpointDurationSeconds *prometheus.HistogramVec
	checkpointBytes           prometheus.Gauge
	checkpointRecords         prometheus.Gauge
	checkpointSkipsTotal      prometheus.Counter

	// Recovery metrics
	recoveryTotal   *prometheus.CounterVec
	recoveryRecords prometheus.Gauge

	// Agent metrics
	agentCycleDurationSeconds prometheus.Histogram
	registrySize              prometheus.Gauge
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		checkpointDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bb_checkpoint_duration_seconds",
			Help:    "Duration of burst buffer checkpoint writes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		checkpointBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bb_checkpoint_bytes",
			Help: "Size of the last encoded checkpoint payload.",
		}),
		checkpointRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bb_checkpoint_records",
			Help: "Number of allocation records in the last checkpoint.",
		}),
		checkpointSkipsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bb_checkpoint_skips_total",
			Help: "Checkpoint cycles skipped because state was unchanged.",
		}),
		recoveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bb_recovery_total",
			Help: "Total state recovery attempts by status.",
		}, []string{"status"}),
		recoveryRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bb_recovery_records",
			Help: "Number of allocation records recovered by the last load.",
		}),
		agentCycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bb_agent_cycle_duration_seconds",
			Help:    "Duration of background agent wake cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bb_registry_records",
			Help: "Current number of allocation records in the registry.",
		}),
	}

	registry.MustRegister(
		r.checkpointDurationSeconds,
		r.checkpointBytes,
		r.checkpointRecords,
		r.checkpointSkipsTotal,
		r.recoveryTotal,
		r.recoveryRecords,
		r.agentCycleDurationSeconds,
		r.registrySize,
	)

	return r
}

// Registry exposes the underlying Prometheus registry, e.g. for an HTTP handler.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordCheckpointSave records a completed checkpoint write attempt.
func (r *PrometheusRecorder) RecordCheckpointSave(ctx context.Context, records int, bytes int, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.checkpointDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
	if success {
		r.checkpointBytes.Set(float64(bytes))
		r.checkpointRecords.Set(float64(records))
	}
}

// RecordCheckpointSkip records a checkpoint cycle skipped because state was unchanged.
func (r *PrometheusRecorder) RecordCheckpointSkip(ctx context.Context) {
	r.checkpointSkipsTotal.Inc()
}

// RecordRecovery records a completed state recovery attempt.
func (r *PrometheusRecorder) RecordRecovery(ctx context.Context, records int, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.recoveryTotal.WithLabelValues(status).Inc()
	if success {
		r.recoveryRecords.Set(float64(records))
	}
}

// RecordAgentCycle records one background agent wake cycle.
func (r *PrometheusRecorder) RecordAgentCycle(ctx context.Context, duration time.Duration) {
	r.agentCycleDurationSeconds.Observe(duration.Seconds())
}

// RecordRegistrySize records the current number of registry records.
func (r *PrometheusRecorder) RecordRegistrySize(ctx context.Context, size int) {
	r.registrySize.Set(float64(size))
}

var _ coremetrics.MetricRecorder = (*PrometheusRecorder)(nil)
