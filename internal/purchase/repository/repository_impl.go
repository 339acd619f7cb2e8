package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/purchase/domain"
)

type repo struct{}

func Provide() domain.Repository { return &repo{} }

func (r *repo) Insert(ctx context.Context, db *gorm.DB, purchase *domain.Purchase) error {
	return db.WithContext(ctx).Create(purchase).Error
}

func (r *repo) FindByTransaction(ctx context.Context, db *gorm.DB, transactionID string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Purchase, error) {
	var purchases []domain.Purchase
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}

func (r *repo) DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Purchase{}).Error
}
