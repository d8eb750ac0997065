package metrics

import (
	"context"

	"github.com/tigerroll/burstbuf/pkg/bb/support/util/logger"
)

// LoggingTracer is an implementation of Tracer that only performs logging.
// It stands in for an integration with a distributed tracing system.
type LoggingTracer struct{}

// NewLoggingTracer creates a new instance of LoggingTracer.
func NewLoggingTracer() Tracer {
	return &LoggingTracer{}
}

// StartCycleSpan starts a trace span for one agent cycle.
func (t *LoggingTracer) StartCycleSpan(ctx context.Context, cycleID string) (context.Context, func()) {
	logger.Debugf("Tracing: Starting agent cycle span (ID: %s)", cycleID)
	return ctx, func() {
		logger.Debugf("Tracing: Ending agent cycle span (ID: %s)", cycleID)
	}
}

// RecordError records an error in the current span.
func (t *LoggingTracer) RecordError(ctx context.Context, module string, err error) {
	logger.Errorf("Tracing: Error recorded in %s: %v", module, err)
}

var _ Tracer = (*LoggingTracer)(nil)
