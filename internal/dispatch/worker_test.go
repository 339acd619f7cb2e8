package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"github.com/kittypup/kittypup/internal/observability/metrics"
)

type stubDeliverer struct {
	err   error
	calls []jobdomain.DispatchMessage
}

func (d *stubDeliverer) Deliver(_ context.Context, msg jobdomain.DispatchMessage) error {
	d.calls = append(d.calls, msg)
	return d.err
}

type stubJobService struct {
	processing []snowflake.ID
	completed  []jobdomain.WorkerResult
}

func (s *stubJobService) Create(context.Context, string, jobdomain.CreateRequest) (*jobdomain.View, error) {
	panic("not used")
}

func (s *stubJobService) Get(context.Context, string, snowflake.ID) (*jobdomain.View, error) {
	panic("not used")
}

func (s *stubJobService) List(context.Context, string, int, string) (*jobdomain.ListResult, error) {
	panic("not used")
}

func (s *stubJobService) CompleteFromWorker(_ context.Context, result jobdomain.WorkerResult) error {
	s.completed = append(s.completed, result)
	return nil
}

func (s *stubJobService) MarkProcessing(_ context.Context, id snowflake.ID) error {
	s.processing = append(s.processing, id)
	return nil
}

func testDispatchMetrics() *metrics.DispatchMetrics {
	// Unregistered counters keep repeated test runs off the default
	// prometheus registry.
	return &metrics.DispatchMetrics{
		Enqueued:  prometheus.NewCounter(prometheus.CounterOpts{Name: "test_enqueued"}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_delivered"}),
		Retried:   prometheus.NewCounter(prometheus.CounterOpts{Name: "test_retried"}),
		Exhausted: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_exhausted"}),
	}
}

func testMessage(t *testing.T) (jobdomain.DispatchMessage, *asynq.Task) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	msg := jobdomain.DispatchMessage{
		JobID:         node.Generate(),
		UserID:        "user-1",
		PetType:       jobdomain.PetTypeDog,
		ImageKeys:     []string{"uploads/a.jpg"},
		IsWatermarked: true,
	}
	payload, err := encodeMessage(msg)
	require.NoError(t, err)
	return msg, asynq.NewTask(TaskTypeGenerate, payload)
}

func TestHandleGenerateDeliversAndMarksProcessing(t *testing.T) {
	deliverer := &stubDeliverer{}
	jobs := &stubJobService{}
	w := NewWorker(deliverer, jobs, testDispatchMetrics(), zap.NewNop())

	msg, task := testMessage(t)
	err := w.HandleGenerate(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, deliverer.calls, 1)
	assert.Equal(t, msg.JobID, deliverer.calls[0].JobID)
	assert.Equal(t, msg.ImageKeys, []string(deliverer.calls[0].ImageKeys))
	require.Len(t, jobs.processing, 1)
	assert.Equal(t, msg.JobID, jobs.processing[0])
	assert.Empty(t, jobs.completed)
}

func TestHandleGenerateExhaustionFailsJob(t *testing.T) {
	deliverer := &stubDeliverer{err: errors.New("worker unreachable")}
	jobs := &stubJobService{}
	w := NewWorker(deliverer, jobs, testDispatchMetrics(), zap.NewNop())

	// A bare context carries no retry metadata, which reads as the last
	// allowed attempt.
	msg, task := testMessage(t)
	err := w.HandleGenerate(context.Background(), task)
	require.Error(t, err)

	require.Len(t, jobs.completed, 1)
	result := jobs.completed[0]
	assert.Equal(t, msg.JobID, result.JobID)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "retries exhausted")
	assert.Empty(t, jobs.processing)
}

func TestHandleGenerateBadPayloadSkipsRetry(t *testing.T) {
	deliverer := &stubDeliverer{}
	jobs := &stubJobService{}
	w := NewWorker(deliverer, jobs, testDispatchMetrics(), zap.NewNop())

	task := asynq.NewTask(TaskTypeGenerate, []byte("{not json"))
	err := w.HandleGenerate(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, deliverer.calls)
	assert.Empty(t, jobs.completed)
}

func TestDecodeMessageRejectsMissingJobID(t *testing.T) {
	_, err := decodeMessage([]byte(`{"userId":"user-1"}`))
	assert.Error(t, err)
}
