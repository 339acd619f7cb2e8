package compliance

import (
	"go.uber.org/fx"

	"github.com/kittypup/kittypup/internal/compliance/repository"
	"github.com/kittypup/kittypup/internal/compliance/service"
)

var Module = fx.Module("compliance.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
