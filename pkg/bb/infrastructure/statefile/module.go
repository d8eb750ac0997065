package statefile

import "go.uber.org/fx"

// Module provides the durable state writer and the recovery loader to Fx.
var Module = fx.Options(
	fx.Provide(NewWriter),
	fx.Provide(NewLoader),
)
