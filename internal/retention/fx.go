package retention

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kittypup/kittypup/internal/config"
)

var Module = fx.Module("retention",
	fx.Provide(
		provideConfig,
		New,
	),
	fx.Invoke(register),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Age:       cfg.RetentionAge,
		Interval:  cfg.RetentionInterval,
		BatchSize: cfg.RetentionBatch,
	}
}

func register(lc fx.Lifecycle, cfg config.Config, sweeper *Sweeper, log *zap.Logger) {
	if !cfg.RetentionEnabled {
		log.Info("retention sweeper disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sweeper.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
