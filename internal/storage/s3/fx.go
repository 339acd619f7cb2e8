package s3

import (
	"github.com/kittypup/kittypup/internal/config"
	"github.com/kittypup/kittypup/internal/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("storage.s3",
	fx.Provide(func(cfg config.Config) (storage.Storage, error) {
		return New(cfg)
	}),
)
