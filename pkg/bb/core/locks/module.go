package locks

import "go.uber.org/fx"

// Module provides the host lock domain to Fx.
var Module = fx.Options(
	fx.Provide(NewHostLock),
)
