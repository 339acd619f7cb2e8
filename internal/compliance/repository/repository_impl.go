package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/compliance/domain"
)

type repo struct{}

func Provide() domain.Repository { return &repo{} }

func (r *repo) Insert(ctx context.Context, db *gorm.DB, req *domain.DeletionRequest) error {
	return db.WithContext(ctx).Create(req).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.DeletionRequest, error) {
	var req domain.DeletionRequest
	err := db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *repo) FindActiveByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.DeletionRequest, error) {
	var req domain.DeletionRequest
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN (?, ?)", userID, domain.DeletionPending, domain.DeletionProcessing).
		Order("requested_at ASC").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.DeletionStatus, completedAt *time.Time) (int64, error) {
	tx := db.WithContext(ctx).
		Model(&domain.DeletionRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"completed_at": completedAt,
		})
	return tx.RowsAffected, tx.Error
}
