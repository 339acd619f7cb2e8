package dispatch

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kittypup/kittypup/internal/config"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"github.com/kittypup/kittypup/internal/observability/metrics"
)

var Module = fx.Module("dispatch",
	fx.Provide(
		DefaultRetryPolicy,
		NewQueue,
		func(q *Queue) jobdomain.Enqueuer { return q },
		provideDeliverer,
		NewWorker,
	),
	fx.Invoke(registerQueue, registerWorker),
)

func provideDeliverer(cfg config.Config) Deliverer {
	return NewGPUClient(cfg.GPUWorkerURL, cfg.CallbackBase)
}

func registerQueue(lc fx.Lifecycle, q *Queue) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return q.Close()
		},
	})
}

func registerWorker(lc fx.Lifecycle, cfg config.Config, policy RetryPolicy, worker *Worker, m *metrics.DispatchMetrics, log *zap.Logger) {
	if !cfg.DispatchWorkerEnabled {
		log.Info("dispatch worker disabled")
		return
	}

	srv := NewServer(redisOpt(cfg), cfg.DispatchConcurrency, policy)
	mux := worker.Mux()

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting dispatch worker",
				zap.Int("concurrency", cfg.DispatchConcurrency),
				zap.Int("max_attempts", policy.MaxAttempts),
			)
			return srv.Start(mux)
		},
		OnStop: func(context.Context) error {
			srv.Shutdown()
			return nil
		},
	})
}
