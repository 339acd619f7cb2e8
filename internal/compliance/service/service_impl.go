package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/clock"
	"github.com/kittypup/kittypup/internal/compliance/domain"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	purchasedomain "github.com/kittypup/kittypup/internal/purchase/domain"
	"github.com/kittypup/kittypup/internal/storage"
)

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	jobRepo      jobdomain.Repository
	purchaseRepo purchasedomain.Repository
	entitlements entitlementdomain.Service
	storage      storage.Storage
}

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	JobRepo      jobdomain.Repository
	PurchaseRepo purchasedomain.Repository
	Entitlements entitlementdomain.Service
	Storage      storage.Storage
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("compliance.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		jobRepo:      p.JobRepo,
		purchaseRepo: p.PurchaseRepo,
		entitlements: p.Entitlements,
		storage:      p.Storage,
	}
}

// RequestDeletion implements domain.Service.
func (s *Service) RequestDeletion(ctx context.Context, userID string) (*domain.DeletionRequest, error) {
	if existing, err := s.repo.FindActiveByUser(ctx, s.db, userID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	req := &domain.DeletionRequest{
		ID:          s.genID.Generate(),
		UserID:      userID,
		Status:      domain.DeletionPending,
		RequestedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, req); err != nil {
		return nil, err
	}

	if err := s.execute(ctx, req); err != nil {
		// The request stays pending; a later submission picks it up again.
		s.log.Error("erasure run failed, request left pending",
			zap.String("user_id", userID),
			zap.String("request_id", req.ID.String()),
			zap.Error(err),
		)
		return req, nil
	}
	return req, nil
}

// execute runs the erasure: object storage first (best effort), then the
// database rows. A database failure reverts the request to pending.
func (s *Service) execute(ctx context.Context, req *domain.DeletionRequest) error {
	touched, err := s.repo.SetStatus(ctx, s.db, req.ID, domain.DeletionPending, domain.DeletionProcessing, nil)
	if err != nil {
		return err
	}
	if touched == 0 {
		// Another run claimed the request.
		return nil
	}

	if err := s.erase(ctx, req.UserID); err != nil {
		if _, rerr := s.repo.SetStatus(ctx, s.db, req.ID, domain.DeletionProcessing, domain.DeletionPending, nil); rerr != nil {
			s.log.Error("failed to revert deletion request",
				zap.String("request_id", req.ID.String()), zap.Error(rerr))
		}
		return err
	}

	now := s.clock.Now()
	if _, err := s.repo.SetStatus(ctx, s.db, req.ID, domain.DeletionProcessing, domain.DeletionCompleted, &now); err != nil {
		return err
	}
	req.Status = domain.DeletionCompleted
	req.CompletedAt = &now

	s.log.Info("user data erased",
		zap.String("user_id", req.UserID),
		zap.String("request_id", req.ID.String()),
	)
	return nil
}

func (s *Service) erase(ctx context.Context, userID string) error {
	jobs, err := s.jobRepo.ListAllByUser(ctx, s.db, userID)
	if err != nil {
		return fmt.Errorf("list jobs for erasure: %w", err)
	}

	for _, job := range jobs {
		for _, key := range job.InputImageKeys {
			if err := s.storage.Delete(ctx, key); err != nil {
				s.log.Warn("input artifact delete failed during erasure",
					zap.String("key", key), zap.Error(err))
			}
		}
		if job.ResultImageKey != nil && *job.ResultImageKey != "" {
			if err := s.storage.Delete(ctx, *job.ResultImageKey); err != nil {
				s.log.Warn("result artifact delete failed during erasure",
					zap.String("key", *job.ResultImageKey), zap.Error(err))
			}
		}
	}

	if err := s.jobRepo.DeleteByUser(ctx, s.db, userID); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	if err := s.purchaseRepo.DeleteByUser(ctx, s.db, userID); err != nil {
		return fmt.Errorf("delete purchases: %w", err)
	}
	if err := s.entitlements.Erase(ctx, userID); err != nil {
		return fmt.Errorf("erase entitlement: %w", err)
	}
	return nil
}

// ExportData implements domain.Service.
func (s *Service) ExportData(ctx context.Context, userID string) (*domain.Export, error) {
	entitlement, err := s.entitlements.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobRepo.ListAllByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	purchases, err := s.purchaseRepo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	return &domain.Export{
		UserID:      userID,
		GeneratedAt: s.clock.Now(),
		Entitlement: entitlement,
		Jobs:        jobs,
		Purchases:   purchases,
	}, nil
}
