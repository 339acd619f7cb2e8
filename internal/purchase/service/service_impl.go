package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/clock"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	"github.com/kittypup/kittypup/internal/purchase/domain"
	"github.com/kittypup/kittypup/pkg/db"
)

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	verifier     domain.Verifier
	entitlements entitlementdomain.Service
}

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	Verifier     domain.Verifier
	Entitlements entitlementdomain.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("purchase.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		verifier:     p.Verifier,
		entitlements: p.Entitlements,
	}
}

// VerifyAndGrant implements domain.Service.
func (s *Service) VerifyAndGrant(ctx context.Context, userID string, req domain.VerifyRequest) (*domain.Result, error) {
	if err := s.verifier.Verify(ctx, req); err != nil {
		return nil, err
	}

	grant, err := domain.ResolveProduct(req.ProductID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByTransaction(ctx, s.db, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Info("replayed transaction ignored",
			zap.String("transaction_id", req.TransactionID),
			zap.String("user_id", userID),
		)
		return replayResult(existing), nil
	}

	record := &domain.Purchase{
		ID:             s.genID.Generate(),
		UserID:         userID,
		TransactionID:  req.TransactionID,
		ProductID:      req.ProductID,
		Platform:       req.Platform,
		CreditsGranted: grant.Credits,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		// Lost the insert race with a concurrent replay; the recorded
		// transaction already carries the grant.
		if db.IsDuplicateKeyErr(err) {
			if existing, ferr := s.repo.FindByTransaction(ctx, s.db, req.TransactionID); ferr == nil && existing != nil {
				return replayResult(existing), nil
			}
		}
		return nil, err
	}

	if grant.SubscriptionDays > 0 {
		if _, err := s.entitlements.ActivateSubscription(ctx, userID, grant.SubscriptionDays); err != nil {
			return nil, err
		}
	} else if _, err := s.entitlements.Grant(ctx, userID, grant.Credits); err != nil {
		return nil, err
	}

	s.log.Info("purchase applied",
		zap.String("user_id", userID),
		zap.String("product_id", req.ProductID),
		zap.String("transaction_id", req.TransactionID),
		zap.Int("credits", grant.Credits),
		zap.Int("subscription_days", grant.SubscriptionDays),
	)

	return &domain.Result{
		TransactionID:    req.TransactionID,
		ProductID:        req.ProductID,
		CreditsGranted:   grant.Credits,
		SubscriptionDays: grant.SubscriptionDays,
	}, nil
}

func replayResult(p *domain.Purchase) *domain.Result {
	res := &domain.Result{
		TransactionID:  p.TransactionID,
		ProductID:      p.ProductID,
		CreditsGranted: p.CreditsGranted,
		AlreadyApplied: true,
	}
	if grant, err := domain.ResolveProduct(p.ProductID); err == nil {
		res.SubscriptionDays = grant.SubscriptionDays
	}
	return res
}
