package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/kittypup/kittypup/internal/clock"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"github.com/kittypup/kittypup/internal/storage"
	"github.com/kittypup/kittypup/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo           jobdomain.Repository
	entitlementSvc entitlementdomain.Service
	enqueuer       jobdomain.Enqueuer
	storage        storage.Storage
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Repo           jobdomain.Repository
	EntitlementSvc entitlementdomain.Service
	Enqueuer       jobdomain.Enqueuer
	Storage        storage.Storage
}

func NewService(p ServiceParam) jobdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("job.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		entitlementSvc: p.EntitlementSvc,
		enqueuer:       p.Enqueuer,
		storage:        p.Storage,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, userID string, req jobdomain.CreateRequest) (*jobdomain.View, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reservation, err := s.entitlementSvc.Reserve(ctx, userID)
	if err != nil {
		// Denied: no job row, no enqueue, nothing to roll back.
		return nil, err
	}

	now := s.clock.Now()
	job := &jobdomain.Job{
		ID:             s.genID.Generate(),
		UserID:         userID,
		PetType:        req.PetType,
		Breed:          req.Breed,
		Status:         jobdomain.StatusPending,
		InputImageKeys: req.ImageKeys,
		// Fixed for the job's lifetime even if the tier changes later.
		IsWatermarked: reservation.Tier == entitlementdomain.TierFree,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, job); err != nil {
		return nil, err
	}

	msg := jobdomain.DispatchMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		PetType:       job.PetType,
		ImageKeys:     req.ImageKeys,
		Breed:         job.Breed,
		IsWatermarked: job.IsWatermarked,
	}
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		// Enqueue failure: the job is marked failed immediately rather
		// than left pending with no dispatch attempt. The consumed credit
		// is not refunded; dispatch is a billable attempt.
		s.log.Error("enqueue failed, marking job failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		failMsg := fmt.Sprintf("dispatch enqueue failed: %v", err)
		if _, ferr := s.repo.CompleteFailure(ctx, s.db, job.ID, failMsg, s.clock.Now()); ferr != nil {
			s.log.Error("failed to mark job failed after enqueue error",
				zap.String("job_id", job.ID.String()),
				zap.Error(ferr),
			)
			return nil, ferr
		}
		fresh, gerr := s.repo.FindByID(ctx, s.db, job.ID)
		if gerr != nil || fresh == nil {
			return nil, err
		}
		return fresh.ToView(nil), nil
	}

	s.log.Info("job created",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", userID),
		zap.String("pet_type", string(req.PetType)),
		zap.Bool("watermarked", job.IsWatermarked),
	)
	return job.ToView(nil), nil
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, userID string, jobID snowflake.ID) (*jobdomain.View, error) {
	job, err := s.repo.FindByIDForUser(ctx, s.db, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, jobdomain.ErrNotFound
	}
	return s.toViewWithURL(ctx, job), nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, userID string, limit int, cursor string) (*jobdomain.ListResult, error) {
	limit = pagination.ClampLimit(limit)

	var cursorID snowflake.ID
	if cursor != "" {
		parsed, err := snowflake.ParseString(cursor)
		if err != nil {
			return nil, jobdomain.ErrInvalidCursor
		}
		cursorID = parsed
	}

	rows, err := s.repo.ListByUser(ctx, s.db, userID, limit, cursorID)
	if err != nil {
		return nil, err
	}

	page := pagination.Build(rows, limit, func(j jobdomain.Job) string {
		return j.ID.String()
	})

	items := make([]*jobdomain.View, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, s.toViewWithURL(ctx, &page.Items[i]))
	}

	return &jobdomain.ListResult{
		Items:      items,
		NextCursor: page.NextCursor,
	}, nil
}

// CompleteFromWorker implements domain.Service.
func (s *Service) CompleteFromWorker(ctx context.Context, result jobdomain.WorkerResult) error {
	now := s.clock.Now()

	var (
		touched int64
		err     error
	)
	if result.Success {
		touched, err = s.repo.CompleteSuccess(ctx, s.db, result.JobID, result.ResultKey, now)
	} else {
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "unknown error"
		}
		touched, err = s.repo.CompleteFailure(ctx, s.db, result.JobID, errMsg, now)
	}
	if err != nil {
		return err
	}

	if touched == 0 {
		job, err := s.repo.FindByID(ctx, s.db, result.JobID)
		if err != nil {
			return err
		}
		if job == nil {
			s.log.Warn("worker callback for unknown job dropped",
				zap.String("job_id", result.JobID.String()),
				zap.Bool("success", result.Success),
			)
			return jobdomain.ErrNotFound
		}
		// Already terminal: duplicate delivery from an at-least-once
		// worker. Swallow it without re-firing side effects.
		s.log.Info("duplicate worker callback ignored",
			zap.String("job_id", result.JobID.String()),
			zap.String("status", string(job.Status)),
		)
		return nil
	}

	s.log.Info("job completed from worker",
		zap.String("job_id", result.JobID.String()),
		zap.Bool("success", result.Success),
	)
	return nil
}

// MarkProcessing implements domain.Service.
func (s *Service) MarkProcessing(ctx context.Context, jobID snowflake.ID) error {
	return s.repo.MarkProcessing(ctx, s.db, jobID, s.clock.Now())
}

// toViewWithURL resolves the result download URL when a result exists. URL
// resolution is best-effort on reads; a storage hiccup degrades to a view
// without the link rather than failing the whole request.
func (s *Service) toViewWithURL(ctx context.Context, job *jobdomain.Job) *jobdomain.View {
	if job.ResultImageKey == nil || *job.ResultImageKey == "" {
		return job.ToView(nil)
	}
	url, err := s.storage.IssueDownloadURL(ctx, *job.ResultImageKey)
	if err != nil {
		s.log.Warn("result url resolution failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return job.ToView(nil)
	}
	return job.ToView(&url)
}
