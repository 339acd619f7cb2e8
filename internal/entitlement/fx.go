package entitlement

import (
	"github.com/kittypup/kittypup/internal/entitlement/repository"
	"github.com/kittypup/kittypup/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
