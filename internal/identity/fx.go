package identity

import (
	"github.com/smallbiznis/sellora/internal/identity/repository"
	"github.com/smallbiznis/sellora/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
