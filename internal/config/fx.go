package config

import "go.uber.org/fx"

// Module wires application and access configuration via Fx.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewAccessConfigHolder,
	),
)
