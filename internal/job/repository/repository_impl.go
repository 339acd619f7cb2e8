package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() jobdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *jobdomain.Job) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*jobdomain.Job, error) {
	var row jobdomain.Job
	err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) FindByIDForUser(ctx context.Context, db *gorm.DB, id snowflake.ID, userID string) (*jobdomain.Job, error) {
	var row jobdomain.Job
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int, cursor snowflake.ID) ([]jobdomain.Job, error) {
	stmt := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	if cursor != 0 {
		stmt = stmt.Where("id < ?", cursor)
	}

	var rows []jobdomain.Job
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE jobs SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		jobdomain.StatusProcessing, now, id, jobdomain.StatusPending,
	).Error
}

func (r *repo) CompleteSuccess(ctx context.Context, db *gorm.DB, id snowflake.ID, resultKey string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET status = ?, result_image_key = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		jobdomain.StatusCompleted, resultKey, now, now,
		id, jobdomain.StatusPending, jobdomain.StatusProcessing,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CompleteFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, errMsg string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET status = ?, error = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		jobdomain.StatusFailed, errMsg, now, now,
		id, jobdomain.StatusPending, jobdomain.StatusProcessing,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListExpiredCompleted(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]jobdomain.Job, error) {
	var rows []jobdomain.Job
	err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", jobdomain.StatusCompleted, cutoff).
		Where("input_image_keys IS NOT NULL AND input_image_keys != ?", "[]").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ClearInputKeys(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE jobs SET input_image_keys = ?, updated_at = ? WHERE id = ?`,
		"[]", now, id,
	).Error
}

func (r *repo) ListAllByUser(ctx context.Context, db *gorm.DB, userID string) ([]jobdomain.Job, error) {
	var rows []jobdomain.Job
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&jobdomain.Job{}).Error
}
