package clock

import "go.uber.org/fx"

// Module wires the system clock via Fx.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
