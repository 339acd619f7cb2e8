package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kittypup/kittypup/internal/config"
)

var Module = fx.Module("ratelimit",
	fx.Provide(
		NewRedisClient,
		provideLimiter,
	),
)

func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				log.Warn("redis unreachable at startup", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}

func provideLimiter(rdb *redis.Client) *Limiter {
	return New(rdb, map[string]Limit{
		"jobs_create":     {Limit: 10, Window: time.Minute},
		"uploads":         {Limit: 20, Window: time.Minute},
		"purchase_verify": {Limit: 10, Window: time.Minute},
		"default":         {Limit: 100, Window: time.Minute},
	})
}
