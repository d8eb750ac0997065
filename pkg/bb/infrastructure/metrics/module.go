package metrics

import (
	"go.uber.org/fx"

	coremetrics "github.com/tigerroll/burstbuf/pkg/bb/core/metrics"
)

// Module is an Fx module that provides PrometheusRecorder as the
// metrics.MetricRecorder interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewPrometheusRecorder,
			fx.As(new(coremetrics.MetricRecorder)),
		),
	),
)
