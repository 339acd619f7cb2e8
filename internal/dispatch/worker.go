package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"github.com/kittypup/kittypup/internal/observability/metrics"
)

// Worker consumes the dispatch queue and delivers jobs to the compute
// worker. Transient delivery failures are retried per the queue policy; a
// job whose retry budget runs out is transitioned to failed.
type Worker struct {
	deliverer Deliverer
	jobs      jobdomain.Service
	metrics   *metrics.DispatchMetrics
	log       *zap.Logger
}

func NewWorker(deliverer Deliverer, jobs jobdomain.Service, m *metrics.DispatchMetrics, log *zap.Logger) *Worker {
	return &Worker{
		deliverer: deliverer,
		jobs:      jobs,
		metrics:   m,
		log:       log.Named("dispatch.worker"),
	}
}

// Mux registers the worker's task handlers.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeGenerate, w.HandleGenerate)
	return mux
}

func (w *Worker) HandleGenerate(ctx context.Context, task *asynq.Task) error {
	msg, err := decodeMessage(task.Payload())
	if err != nil {
		w.log.Error("undecodable dispatch payload dropped", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := w.deliverer.Deliver(ctx, msg); err != nil {
		return w.handleDeliveryFailure(ctx, msg, err)
	}

	w.metrics.Delivered.Inc()
	if err := w.jobs.MarkProcessing(ctx, msg.JobID); err != nil {
		// Delivery already happened; the callback will settle the job
		// even if this transition was lost.
		w.log.Warn("mark processing failed after delivery",
			zap.String("job_id", msg.JobID.String()), zap.Error(err))
	}
	return nil
}

func (w *Worker) handleDeliveryFailure(ctx context.Context, msg jobdomain.DispatchMessage, deliverErr error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	if retried >= maxRetry {
		w.metrics.Exhausted.Inc()
		w.log.Error("dispatch retries exhausted, failing job",
			zap.String("job_id", msg.JobID.String()),
			zap.Int("attempts", retried+1),
			zap.Error(deliverErr),
		)
		result := jobdomain.WorkerResult{
			JobID:   msg.JobID,
			Success: false,
			Error:   fmt.Sprintf("dispatch retries exhausted: %v", deliverErr),
		}
		if err := w.jobs.CompleteFromWorker(ctx, result); err != nil {
			w.log.Error("failed to record dispatch exhaustion",
				zap.String("job_id", msg.JobID.String()), zap.Error(err))
		}
		return fmt.Errorf("dispatch exhausted for job %s: %w", msg.JobID, deliverErr)
	}

	w.metrics.Retried.Inc()
	w.log.Warn("transient dispatch failure, will retry",
		zap.String("job_id", msg.JobID.String()),
		zap.Int("retried", retried),
		zap.Error(deliverErr),
	)
	return fmt.Errorf("transient dispatch failure for job %s: %w", msg.JobID, deliverErr)
}

// Server wires the worker into a queue consumer with bounded concurrency
// and the explicit retry policy.
func NewServer(opt asynq.RedisClientOpt, concurrency int, policy RetryPolicy) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return policy.Delay(n)
		},
	})
}
