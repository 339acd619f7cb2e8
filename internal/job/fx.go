package job

import (
	"github.com/kittypup/kittypup/internal/job/repository"
	"github.com/kittypup/kittypup/internal/job/service"
	"go.uber.org/fx"
)

var Module = fx.Module("job.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
