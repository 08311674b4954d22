package authorization

import (
	"github.com/smallbiznis/sellora/internal/authorization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("authorization.service",
	fx.Provide(service.NewEnforcer),
	fx.Provide(service.NewService),
)
