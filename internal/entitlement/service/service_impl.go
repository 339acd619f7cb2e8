package service

import (
	"context"

	"github.com/kittypup/kittypup/internal/clock"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	"github.com/kittypup/kittypup/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  entitlementdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  entitlementdomain.Repository
}

func NewService(p ServiceParam) entitlementdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("entitlement.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, userID string) (*entitlementdomain.Entitlement, error) {
	return s.ensure(ctx, userID)
}

// ensure loads the user's ledger row, creating the default one on first
// access and applying lazy subscription expiry before returning.
func (s *Service) ensure(ctx context.Context, userID string) (*entitlementdomain.Entitlement, error) {
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUser
	}

	row, err := s.repo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		now := s.clock.Now()
		row = &entitlementdomain.Entitlement{
			UserID:           userID,
			Tier:             entitlementdomain.TierFree,
			CreditsRemaining: entitlementdomain.DefaultCredits,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Insert(ctx, s.db, row); err != nil {
			// Lost a create race with a concurrent first request; the
			// winner's row is authoritative.
			if !db.IsDuplicateKeyErr(err) {
				return nil, err
			}
			if row, err = s.repo.FindByUser(ctx, s.db, userID); err != nil {
				return nil, err
			}
			if row == nil {
				return nil, entitlementdomain.ErrNotFound
			}
		}
	}

	return s.expireIfPassed(ctx, row)
}

// expireIfPassed applies the idempotent subscription-expiry transition when
// the window has lapsed. The guarded UPDATE makes re-runs and concurrent
// calls no-ops.
func (s *Service) expireIfPassed(ctx context.Context, row *entitlementdomain.Entitlement) (*entitlementdomain.Entitlement, error) {
	now := s.clock.Now()
	if row.UnlimitedUntil == nil || row.UnlimitedUntil.After(now) || !row.ActiveSubscription {
		return row, nil
	}

	if err := s.repo.ExpireSubscription(ctx, s.db, row.UserID, now); err != nil {
		return nil, err
	}
	s.log.Info("subscription expired", zap.String("user_id", row.UserID))

	fresh, err := s.repo.FindByUser(ctx, s.db, row.UserID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, entitlementdomain.ErrNotFound
	}
	return fresh, nil
}

// Reserve implements domain.Service.
func (s *Service) Reserve(ctx context.Context, userID string) (*entitlementdomain.Reservation, error) {
	row, err := s.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}

	if row.SubscriptionActiveAt(s.clock.Now()) {
		return &entitlementdomain.Reservation{
			Tier:             row.Tier,
			UsedSubscription: true,
		}, nil
	}

	consumed, err := s.repo.ConsumeCredit(ctx, s.db, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, entitlementdomain.ErrNoCredits
	}

	return &entitlementdomain.Reservation{
		Tier:             row.Tier,
		UsedSubscription: false,
	}, nil
}

// Grant implements domain.Service. Idempotency of repeated grants is the
// caller's responsibility (purchase records are deduplicated upstream).
func (s *Service) Grant(ctx context.Context, userID string, amount int) (*entitlementdomain.Entitlement, error) {
	if amount <= 0 {
		return nil, entitlementdomain.ErrInvalidAmount
	}
	if _, err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.repo.AddCredits(ctx, s.db, userID, amount, s.clock.Now()); err != nil {
		return nil, err
	}
	s.log.Info("credits granted",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
	)
	return s.Get(ctx, userID)
}

// ActivateSubscription implements domain.Service.
func (s *Service) ActivateSubscription(ctx context.Context, userID string, durationDays int) (*entitlementdomain.Entitlement, error) {
	if durationDays <= 0 {
		return nil, entitlementdomain.ErrInvalidWindow
	}
	if _, err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	until := now.AddDate(0, 0, durationDays)
	tier := entitlementdomain.TierMonthly
	if durationDays >= 365 {
		tier = entitlementdomain.TierLifetime
	}
	if _, err := s.repo.SetSubscription(ctx, s.db, userID, tier, until, now); err != nil {
		return nil, err
	}
	s.log.Info("subscription activated",
		zap.String("user_id", userID),
		zap.Time("unlimited_until", until),
	)
	return s.Get(ctx, userID)
}

// DeactivateSubscription implements domain.Service. Invoked by store
// cancellation/expiration webhooks.
func (s *Service) DeactivateSubscription(ctx context.Context, userID string) (*entitlementdomain.Entitlement, error) {
	if _, err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repo.ClearSubscription(ctx, s.db, userID, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// Erase implements domain.Service; account erasure only.
func (s *Service) Erase(ctx context.Context, userID string) error {
	if userID == "" {
		return entitlementdomain.ErrInvalidUser
	}
	return s.repo.DeleteByUser(ctx, s.db, userID)
}
