package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	FindByIDForUser(ctx context.Context, db *gorm.DB, id snowflake.ID, userID string) (*Job, error)

	// ListByUser returns up to limit+1 jobs newest-first. Snowflake ids are
	// time-ordered, so the keyset cursor is simply the last-seen id.
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int, cursor snowflake.ID) ([]Job, error)

	// MarkProcessing moves a pending job to processing. Zero rows touched
	// means the job already progressed; callers treat that as a no-op.
	MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	// CompleteSuccess / CompleteFailure apply the terminal transition,
	// guarded by status IN (pending, processing) so duplicate deliveries
	// can never overwrite a prior terminal state. They report the number
	// of rows touched.
	CompleteSuccess(ctx context.Context, db *gorm.DB, id snowflake.ID, resultKey string, now time.Time) (int64, error)
	CompleteFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, errMsg string, now time.Time) (int64, error)

	// ListExpiredCompleted returns completed jobs created before cutoff
	// that still hold input artifacts.
	ListExpiredCompleted(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Job, error)
	ClearInputKeys(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	ListAllByUser(ctx context.Context, db *gorm.DB, userID string) ([]Job, error)
	DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error
}
