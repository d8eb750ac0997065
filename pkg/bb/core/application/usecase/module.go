package usecase

import "go.uber.org/fx"

// Module provides application-level services to Fx.
var Module = fx.Options(
	fx.Provide(NewBufferService),
)
