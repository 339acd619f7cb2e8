package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, purchase *Purchase) error
	FindByTransaction(ctx context.Context, db *gorm.DB, transactionID string) (*Purchase, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]Purchase, error)
	DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error
}

// Verifier checks a receipt against the originating store. Implementations
// must not mutate any state; granting is the service's job.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) error
}

type Service interface {
	// VerifyAndGrant verifies the receipt, applies the product's grant to
	// the user's entitlement and records the transaction. Replays of an
	// already-recorded transaction id grant nothing and report
	// AlreadyApplied.
	VerifyAndGrant(ctx context.Context, userID string, req VerifyRequest) (*Result, error)
}
