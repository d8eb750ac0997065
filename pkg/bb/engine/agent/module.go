package agent

import "go.uber.org/fx"

// Module provides the background agent to Fx.
var Module = fx.Options(
	fx.Provide(NewAgent),
)
