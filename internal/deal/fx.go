package deal

import (
	"github.com/smallbiznis/sellora/internal/deal/repository"
	"github.com/smallbiznis/sellora/internal/deal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
