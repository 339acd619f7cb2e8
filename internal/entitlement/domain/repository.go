package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByUser(ctx context.Context, db *gorm.DB, userID string) (*Entitlement, error)
	Insert(ctx context.Context, db *gorm.DB, entitlement *Entitlement) error

	// ConsumeCredit decrements credits_remaining by exactly one, guarded by
	// credits_remaining > 0 in the same statement. Returns false when no
	// credit was available; the row is left unchanged in that case.
	ConsumeCredit(ctx context.Context, db *gorm.DB, userID string, now time.Time) (bool, error)

	// AddCredits increments credits_remaining. Returns the number of rows
	// touched so callers can fall back to creating the row.
	AddCredits(ctx context.Context, db *gorm.DB, userID string, amount int, now time.Time) (int64, error)

	// ExpireSubscription clears the subscription flags and reverts the tier
	// to free, guarded by unlimited_until <= now so concurrent expiry calls
	// and renewals cannot race each other.
	ExpireSubscription(ctx context.Context, db *gorm.DB, userID string, now time.Time) error

	SetSubscription(ctx context.Context, db *gorm.DB, userID string, tier Tier, until time.Time, now time.Time) (int64, error)
	ClearSubscription(ctx context.Context, db *gorm.DB, userID string, now time.Time) error
	DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error
}

type Service interface {
	// Get returns the user's entitlement, creating the default row
	// (free tier, one credit) on first access and applying lazy
	// subscription expiry before returning.
	Get(ctx context.Context, userID string) (*Entitlement, error)

	// Reserve authorizes one job creation: a no-op under an active
	// subscription, otherwise an atomic check-and-decrement of one credit.
	// Fails with ErrNoCredits without mutating anything.
	Reserve(ctx context.Context, userID string) (*Reservation, error)

	Grant(ctx context.Context, userID string, amount int) (*Entitlement, error)
	ActivateSubscription(ctx context.Context, userID string, durationDays int) (*Entitlement, error)
	DeactivateSubscription(ctx context.Context, userID string) (*Entitlement, error)
	Erase(ctx context.Context, userID string) error
}
