package purchase

import (
	"go.uber.org/fx"

	"github.com/kittypup/kittypup/internal/purchase/repository"
	"github.com/kittypup/kittypup/internal/purchase/service"
)

var Module = fx.Module("purchase.service",
	fx.Provide(
		repository.Provide,
		service.NewVerifier,
		service.NewService,
	),
)
