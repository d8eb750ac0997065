// Package metrics defines abstract interfaces for recording metrics and trace
// spans for burst-buffer state operations. Concrete backends live under
// infrastructure/metrics; a no-op implementation is provided for tests and for
// deployments that disable metrics.
package metrics

import (
	"context"
	"time"
)

// MetricRecorder is an abstract interface for recording metrics related to
// state persistence and the background agent.
//
// This interface provides a standardized way to record checkpoint, recovery and
// agent-cycle events, facilitating integration with different metrics backends.
type MetricRecorder interface {
	// RecordCheckpointSave records a completed checkpoint write attempt.
	//
	// ctx: The context for the operation.
	// records: The number of allocation records encoded.
	// bytes: The size of the encoded payload.
	// duration: The wall time of the encode plus file write.
	// success: Whether the write and rotation succeeded.
	RecordCheckpointSave(ctx context.Context, records int, bytes int, duration time.Duration, success bool)

	// RecordCheckpointSkip records a checkpoint cycle skipped because the
	// registry had not changed since the last successful write.
	RecordCheckpointSkip(ctx context.Context)

	// RecordRecovery records a completed state recovery attempt.
	//
	// ctx: The context for the operation.
	// records: The number of allocation records recovered.
	// success: Whether the recovery succeeded.
	RecordRecovery(ctx context.Context, records int, success bool)

	// RecordAgentCycle records one background agent wake cycle.
	RecordAgentCycle(ctx context.Context, duration time.Duration)

	// RecordRegistrySize records the current number of registry records.
	RecordRegistrySize(ctx context.Context, size int)
}

// Tracer is an abstract interface for tracing state engine operations.
type Tracer interface {
	// StartCycleSpan starts a span covering one agent cycle and returns a
	// function that ends it.
	StartCycleSpan(ctx context.Context, cycleID string) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)
}
