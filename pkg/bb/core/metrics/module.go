package metrics

import "go.uber.org/fx"

// Module provides the tracing component to Fx. The metric recorder itself is
// provided by an infrastructure module (or by NoOpModule for tests).
var Module = fx.Options(
	fx.Provide(NewLoggingTracer),
)

// NoOpModule provides a metric recorder that does nothing.
var NoOpModule = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
)
