package metrics

import (
	"context"
	"time"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordCheckpointSave does nothing.
func (r *NoOpMetricRecorder) RecordCheckpointSave(ctx context.Context, records int, bytes int, duration time.Duration, success bool) {
}

// RecordCheckpointSkip does nothing.
func (r *NoOpMetricRecorder) RecordCheckpointSkip(ctx context.Context) {}

// RecordRecovery does nothing.
func (r *NoOpMetricRecorder) RecordRecovery(ctx context.Context, records int, success bool) {}

// RecordAgentCycle does nothing.
func (r *NoOpMetricRecorder) RecordAgentCycle(ctx context.Context, duration time.Duration) {}

// RecordRegistrySize does nothing.
func (r *NoOpMetricRecorder) RecordRegistrySize(ctx context.Context, size int) {}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)
