package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/clock"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	entitlementrepo "github.com/kittypup/kittypup/internal/entitlement/repository"
	entitlementservice "github.com/kittypup/kittypup/internal/entitlement/service"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"github.com/kittypup/kittypup/internal/job/repository"
	"github.com/kittypup/kittypup/internal/storage"
)

// -- Fakes --

type fakeEnqueuer struct {
	err  error
	msgs []jobdomain.DispatchMessage
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msg jobdomain.DispatchMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeStorage struct {
	downloadErr error
	deleted     []string
}

func (f *fakeStorage) IssueUploadTarget(_ context.Context, fileName, _ string) (*storage.UploadTarget, error) {
	return &storage.UploadTarget{UploadURL: "https://example.test/upload", FileKey: "uploads/" + fileName}, nil
}

func (f *fakeStorage) IssueDownloadURL(_ context.Context, key string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return "https://example.test/" + key, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      jobdomain.Service
	ents     entitlementdomain.Service
	enqueuer *fakeEnqueuer
	storage  *fakeStorage
	clock    *clock.FakeClock
	genID    *snowflake.Node
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entitlementdomain.Entitlement{}, &jobdomain.Job{}))

	fc := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ents := entitlementservice.NewService(entitlementservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fc,
		Repo:  entitlementrepo.Provide(),
	})

	enq := &fakeEnqueuer{}
	st := &fakeStorage{}
	svc := NewService(ServiceParam{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          fc,
		Repo:           repository.Provide(),
		EntitlementSvc: ents,
		Enqueuer:       enq,
		Storage:        st,
	})

	return &fixture{db: db, svc: svc, ents: ents, enqueuer: enq, storage: st, clock: fc, genID: node}
}

func validRequest() jobdomain.CreateRequest {
	return jobdomain.CreateRequest{
		PetType:   jobdomain.PetTypeCat,
		ImageKeys: []string{"uploads/a.jpg", "uploads/b.jpg"},
	}
}

func TestCreateJobFreeTierWatermarked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, "user-1", validRequest())
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusPending, view.Status)
	assert.True(t, view.IsWatermarked)
	assert.Equal(t, []string{"uploads/a.jpg", "uploads/b.jpg"}, view.InputImageKeys)

	require.Len(t, f.enqueuer.msgs, 1)
	msg := f.enqueuer.msgs[0]
	assert.Equal(t, view.ID, msg.JobID.String())
	assert.True(t, msg.IsWatermarked)

	row, err := f.ents.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.CreditsRemaining)
}

func TestCreateJobSubscriberNotWatermarked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ents.ActivateSubscription(ctx, "user-1", 30)
	require.NoError(t, err)

	view, err := f.svc.Create(ctx, "user-1", validRequest())
	require.NoError(t, err)
	assert.False(t, view.IsWatermarked)
	require.Len(t, f.enqueuer.msgs, 1)
	assert.False(t, f.enqueuer.msgs[0].IsWatermarked)
}

func TestCreateJobDeniedWithoutCredits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", validRequest())
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, "user-1", validRequest())
	assert.ErrorIs(t, err, entitlementdomain.ErrNoCredits)

	// The denied attempt must leave no row and no queue message behind.
	var count int64
	require.NoError(t, f.db.Model(&jobdomain.Job{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Len(t, f.enqueuer.msgs, 1)
}

func TestCreateJobValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", jobdomain.CreateRequest{
		PetType:   "hamster",
		ImageKeys: []string{"uploads/a.jpg"},
	})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidPetType)

	_, err = f.svc.Create(ctx, "user-1", jobdomain.CreateRequest{
		PetType:   jobdomain.PetTypeDog,
		ImageKeys: nil,
	})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidImageKeys)

	_, err = f.svc.Create(ctx, "user-1", jobdomain.CreateRequest{
		PetType:   jobdomain.PetTypeDog,
		ImageKeys: make([]string, jobdomain.MaxInputImages+1),
	})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidImageKeys)

	// Validation failures must not burn a credit.
	row, err := f.ents.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.DefaultCredits, row.CreditsRemaining)
}

func TestCreateJobEnqueueFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.enqueuer.err = errors.New("redis down")

	view, err := f.svc.Create(ctx, "user-1", validRequest())
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusFailed, view.Status)
	require.NotNil(t, view.Error)
	assert.Contains(t, *view.Error, "enqueue failed")

	// The consumed credit is not refunded.
	row, err := f.ents.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.CreditsRemaining)
}

func TestGetScopedToOwner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, "user-1", validRequest())
	require.NoError(t, err)
	jobID, err := snowflake.ParseString(view.ID)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "user-1", jobID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)

	_, err = f.svc.Get(ctx, "user-2", jobID)
	assert.ErrorIs(t, err, jobdomain.ErrNotFound)

	_, err = f.svc.Get(ctx, "user-1", f.genID.Generate())
	assert.ErrorIs(t, err, jobdomain.ErrNotFound)
}

func (f *fixture) insertJob(t *testing.T, userID string, status jobdomain.Status, createdAt time.Time) snowflake.ID {
	t.Helper()
	job := &jobdomain.Job{
		ID:             f.genID.Generate(),
		UserID:         userID,
		PetType:        jobdomain.PetTypeCat,
		Status:         status,
		InputImageKeys: []string{"uploads/x.jpg"},
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, f.db.Create(job).Error)
	return job.ID
}

func TestListPagination(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	base := f.clock.Now()
	var ids []snowflake.ID
	for i := 0; i < 5; i++ {
		ids = append(ids, f.insertJob(t, "user-1", jobdomain.StatusPending, base.Add(time.Duration(i)*time.Minute)))
	}
	f.insertJob(t, "user-2", jobdomain.StatusPending, base)

	page1, err := f.svc.List(ctx, "user-1", 2, "")
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.Equal(t, ids[4].String(), page1.Items[0].ID)
	assert.Equal(t, ids[3].String(), page1.Items[1].ID)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := f.svc.List(ctx, "user-1", 2, page1.NextCursor)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.Equal(t, ids[2].String(), page2.Items[0].ID)
	assert.Equal(t, ids[1].String(), page2.Items[1].ID)
	require.NotEmpty(t, page2.NextCursor)

	page3, err := f.svc.List(ctx, "user-1", 2, page2.NextCursor)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.Equal(t, ids[0].String(), page3.Items[0].ID)
	assert.Empty(t, page3.NextCursor)
}

func TestListRejectsBadCursor(t *testing.T) {
	f := setup(t)

	_, err := f.svc.List(context.Background(), "user-1", 10, "not-a-cursor")
	assert.ErrorIs(t, err, jobdomain.ErrInvalidCursor)
}

func TestCompleteFromWorkerSuccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	jobID := f.insertJob(t, "user-1", jobdomain.StatusProcessing, f.clock.Now())

	err := f.svc.CompleteFromWorker(ctx, jobdomain.WorkerResult{
		JobID:     jobID,
		Success:   true,
		ResultKey: "results/out.png",
	})
	require.NoError(t, err)

	view, err := f.svc.Get(ctx, "user-1", jobID)
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusCompleted, view.Status)
	require.NotNil(t, view.ResultImageKey)
	assert.Equal(t, "results/out.png", *view.ResultImageKey)
	require.NotNil(t, view.ResultURL)
	assert.Equal(t, "https://example.test/results/out.png", *view.ResultURL)
	assert.NotNil(t, view.CompletedAt)
}

func TestCompleteFromWorkerFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	jobID := f.insertJob(t, "user-1", jobdomain.StatusPending, f.clock.Now())

	err := f.svc.CompleteFromWorker(ctx, jobdomain.WorkerResult{
		JobID:   jobID,
		Success: false,
		Error:   "model crashed",
	})
	require.NoError(t, err)

	view, err := f.svc.Get(ctx, "user-1", jobID)
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusFailed, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, "model crashed", *view.Error)
}

func TestCompleteFromWorkerDuplicateIsNoOp(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	jobID := f.insertJob(t, "user-1", jobdomain.StatusProcessing, f.clock.Now())

	require.NoError(t, f.svc.CompleteFromWorker(ctx, jobdomain.WorkerResult{
		JobID: jobID, Success: true, ResultKey: "results/first.png",
	}))

	// A late failure delivery must not overwrite the terminal state.
	require.NoError(t, f.svc.CompleteFromWorker(ctx, jobdomain.WorkerResult{
		JobID: jobID, Success: false, Error: "late timeout",
	}))

	view, err := f.svc.Get(ctx, "user-1", jobID)
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusCompleted, view.Status)
	require.NotNil(t, view.ResultImageKey)
	assert.Equal(t, "results/first.png", *view.ResultImageKey)
}

func TestCompleteFromWorkerUnknownJob(t *testing.T) {
	f := setup(t)

	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(ServiceParam{
		DB:             f.db,
		Log:            zap.New(core),
		GenID:          f.genID,
		Clock:          f.clock,
		Repo:           repository.Provide(),
		EntitlementSvc: f.ents,
		Enqueuer:       f.enqueuer,
		Storage:        f.storage,
	})

	missing := f.genID.Generate()
	err := svc.CompleteFromWorker(context.Background(), jobdomain.WorkerResult{
		JobID: missing, Success: true, ResultKey: "results/out.png",
	})
	assert.ErrorIs(t, err, jobdomain.ErrNotFound)

	// The dropped callback leaves a trace with the offending job id.
	entries := logs.FilterMessage("worker callback for unknown job dropped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, missing.String(), entries[0].ContextMap()["job_id"])
}

func TestMarkProcessing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	jobID := f.insertJob(t, "user-1", jobdomain.StatusPending, f.clock.Now())

	require.NoError(t, f.svc.MarkProcessing(ctx, jobID))
	view, err := f.svc.Get(ctx, "user-1", jobID)
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusProcessing, view.Status)

	require.NoError(t, f.svc.CompleteFromWorker(ctx, jobdomain.WorkerResult{
		JobID: jobID, Success: true, ResultKey: "results/out.png",
	}))

	// A stale processing signal after completion changes nothing.
	require.NoError(t, f.svc.MarkProcessing(ctx, jobID))
	view, err = f.svc.Get(ctx, "user-1", jobID)
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusCompleted, view.Status)
}

func TestResultURLFailureDegrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	jobID := f.insertJob(t, "user-1", jobdomain.StatusProcessing, f.clock.Now())

	require.NoError(t, f.svc.CompleteFromWorker(ctx, jobdomain.WorkerResult{
		JobID: jobID, Success: true, ResultKey: "results/out.png",
	}))

	f.storage.downloadErr = errors.New("s3 down")
	view, err := f.svc.Get(ctx, "user-1", jobID)
	require.NoError(t, err)
	assert.Nil(t, view.ResultURL)
	require.NotNil(t, view.ResultImageKey)
}
