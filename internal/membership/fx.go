package membership

import (
	"go.uber.org/fx"
)

var Module = fx.Module("membership.resolver",
	fx.Provide(NewResolverCache),
	fx.Provide(NewResolver),
	fx.Provide(AsMembershipResolver),
)
