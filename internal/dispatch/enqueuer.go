package dispatch

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/kittypup/kittypup/internal/config"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"github.com/kittypup/kittypup/internal/observability/metrics"
)

// Queue is the producer side of the dispatch queue.
type Queue struct {
	client  *asynq.Client
	policy  RetryPolicy
	metrics *metrics.DispatchMetrics
	log     *zap.Logger
}

func redisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewQueue(cfg config.Config, policy RetryPolicy, m *metrics.DispatchMetrics, log *zap.Logger) *Queue {
	return &Queue{
		client:  asynq.NewClient(redisOpt(cfg)),
		policy:  policy,
		metrics: m,
		log:     log.Named("dispatch.queue"),
	}
}

func (q *Queue) Enqueue(ctx context.Context, msg jobdomain.DispatchMessage) error {
	payload, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeGenerate, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(queueName),
		asynq.TaskID(msg.JobID.String()),
		asynq.MaxRetry(q.policy.MaxRetries()),
		asynq.Timeout(deliveryTimeout),
		asynq.Retention(completedRetention),
	)
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", msg.JobID, err)
	}
	q.metrics.Enqueued.Inc()
	q.log.Info("job enqueued",
		zap.String("job_id", msg.JobID.String()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

var _ jobdomain.Enqueuer = (*Queue)(nil)
