package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/clock"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	jobrepo "github.com/kittypup/kittypup/internal/job/repository"
	"github.com/kittypup/kittypup/internal/observability/metrics"
	"github.com/kittypup/kittypup/internal/storage"
)

type recordingStorage struct {
	failKeys map[string]bool
	deleted  []string
}

func (s *recordingStorage) IssueUploadTarget(context.Context, string, string) (*storage.UploadTarget, error) {
	panic("not used")
}

func (s *recordingStorage) IssueDownloadURL(context.Context, string) (string, error) {
	panic("not used")
}

func (s *recordingStorage) Delete(_ context.Context, key string) error {
	if s.failKeys[key] {
		return errors.New("delete failed")
	}
	s.deleted = append(s.deleted, key)
	return nil
}

type sweeperFixture struct {
	db      *gorm.DB
	sweeper *Sweeper
	storage *recordingStorage
	clock   *clock.FakeClock
	genID   *snowflake.Node
}

func newSweeperFixture(t *testing.T) *sweeperFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&jobdomain.Job{}))

	fc := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	st := &recordingStorage{failKeys: map[string]bool{}}

	m := &metrics.RetentionMetrics{
		SweptJobs:      prometheus.NewCounter(prometheus.CounterOpts{Name: "test_swept"}),
		DeletedObjects: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_deleted"}),
		DeleteErrors:   prometheus.NewCounter(prometheus.CounterOpts{Name: "test_delete_errors"}),
	}

	sw, err := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Clock:   fc,
		JobRepo: jobrepo.Provide(),
		Storage: st,
		Metrics: m,
		Config:  Config{Age: 72 * time.Hour, Interval: time.Hour, BatchSize: 100},
	})
	require.NoError(t, err)

	return &sweeperFixture{db: db, sweeper: sw, storage: st, clock: fc, genID: node}
}

func (f *sweeperFixture) insertJob(t *testing.T, status jobdomain.Status, age time.Duration, keys []string) snowflake.ID {
	t.Helper()
	createdAt := f.clock.Now().Add(-age)
	job := &jobdomain.Job{
		ID:             f.genID.Generate(),
		UserID:         "user-1",
		PetType:        jobdomain.PetTypeCat,
		Status:         status,
		InputImageKeys: keys,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, f.db.Create(job).Error)
	return job.ID
}

func (f *sweeperFixture) keysOf(t *testing.T, id snowflake.ID) []string {
	t.Helper()
	var job jobdomain.Job
	require.NoError(t, f.db.First(&job, "id = ?", id).Error)
	return []string(job.InputImageKeys)
}

func TestRunOnceSweepsExpiredCompleted(t *testing.T) {
	f := newSweeperFixture(t)

	old := f.insertJob(t, jobdomain.StatusCompleted, 100*time.Hour, []string{"uploads/a.jpg", "uploads/b.jpg"})
	resultKey := "results/out.png"
	require.NoError(t, f.db.Model(&jobdomain.Job{}).Where("id = ?", old).
		Update("result_image_key", resultKey).Error)

	require.NoError(t, f.sweeper.RunOnce(context.Background()))

	assert.ElementsMatch(t, []string{"uploads/a.jpg", "uploads/b.jpg"}, f.storage.deleted)
	assert.Empty(t, f.keysOf(t, old))

	// The result artifact outlives the input sweep.
	var job jobdomain.Job
	require.NoError(t, f.db.First(&job, "id = ?", old).Error)
	require.NotNil(t, job.ResultImageKey)
	assert.Equal(t, resultKey, *job.ResultImageKey)
}

func TestRunOnceSkipsYoungAndNonCompleted(t *testing.T) {
	f := newSweeperFixture(t)

	young := f.insertJob(t, jobdomain.StatusCompleted, time.Hour, []string{"uploads/young.jpg"})
	pending := f.insertJob(t, jobdomain.StatusPending, 100*time.Hour, []string{"uploads/pending.jpg"})
	failed := f.insertJob(t, jobdomain.StatusFailed, 100*time.Hour, []string{"uploads/failed.jpg"})

	require.NoError(t, f.sweeper.RunOnce(context.Background()))

	assert.Empty(t, f.storage.deleted)
	assert.NotEmpty(t, f.keysOf(t, young))
	assert.NotEmpty(t, f.keysOf(t, pending))
	assert.NotEmpty(t, f.keysOf(t, failed))
}

func TestRunOnceKeepsKeysWhenDeleteFails(t *testing.T) {
	f := newSweeperFixture(t)

	id := f.insertJob(t, jobdomain.StatusCompleted, 100*time.Hour, []string{"uploads/a.jpg", "uploads/b.jpg"})
	f.storage.failKeys["uploads/b.jpg"] = true

	require.NoError(t, f.sweeper.RunOnce(context.Background()))
	// Keys survive so the next run retries the whole job.
	assert.ElementsMatch(t, []string{"uploads/a.jpg", "uploads/b.jpg"}, f.keysOf(t, id))

	f.storage.failKeys = map[string]bool{}
	require.NoError(t, f.sweeper.RunOnce(context.Background()))
	assert.Empty(t, f.keysOf(t, id))
}

func TestRunOnceIsIdempotent(t *testing.T) {
	f := newSweeperFixture(t)

	f.insertJob(t, jobdomain.StatusCompleted, 100*time.Hour, []string{"uploads/a.jpg"})

	require.NoError(t, f.sweeper.RunOnce(context.Background()))
	require.Len(t, f.storage.deleted, 1)

	// Cleared jobs are no longer sweep candidates.
	require.NoError(t, f.sweeper.RunOnce(context.Background()))
	assert.Len(t, f.storage.deleted, 1)
}

func TestRunOnceEmptyDatabase(t *testing.T) {
	f := newSweeperFixture(t)
	require.NoError(t, f.sweeper.RunOnce(context.Background()))
	assert.Empty(t, f.storage.deleted)
}
