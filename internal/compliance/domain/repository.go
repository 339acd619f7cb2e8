package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, req *DeletionRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DeletionRequest, error)

	// FindActiveByUser returns the user's pending or processing request,
	// nil when none exists.
	FindActiveByUser(ctx context.Context, db *gorm.DB, userID string) (*DeletionRequest, error)

	// SetStatus transitions a request, guarded by its current status.
	// Returns the number of rows touched.
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to DeletionStatus, completedAt *time.Time) (int64, error)
}

type Service interface {
	// RequestDeletion records an erasure request and runs it immediately.
	// A user with an active request gets that request back instead of a
	// new one.
	RequestDeletion(ctx context.Context, userID string) (*DeletionRequest, error)

	// ExportData bundles everything stored about the user.
	ExportData(ctx context.Context, userID string) (*Export, error)
}
