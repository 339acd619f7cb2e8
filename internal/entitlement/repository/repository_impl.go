package repository

import (
	"context"
	"errors"
	"time"

	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() entitlementdomain.Repository {
	return &repo{}
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, userID string) (*entitlementdomain.Entitlement, error) {
	var row entitlementdomain.Entitlement
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entitlement *entitlementdomain.Entitlement) error {
	return db.WithContext(ctx).Create(entitlement).Error
}

// ConsumeCredit is the single hot mutation point of the ledger. The guard in
// the WHERE clause makes check-and-decrement one atomic statement; two
// concurrent calls for a user holding one credit can never both succeed.
func (r *repo) ConsumeCredit(ctx context.Context, db *gorm.DB, userID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entitlements
		 SET credits_remaining = credits_remaining - 1, updated_at = ?
		 WHERE user_id = ? AND credits_remaining > 0`,
		now, userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) AddCredits(ctx context.Context, db *gorm.DB, userID string, amount int, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entitlements
		 SET credits_remaining = credits_remaining + ?, updated_at = ?
		 WHERE user_id = ?`,
		amount, now, userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ExpireSubscription(ctx context.Context, db *gorm.DB, userID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE entitlements
		 SET active_subscription = ?, tier = ?, updated_at = ?
		 WHERE user_id = ? AND active_subscription = ? AND unlimited_until IS NOT NULL AND unlimited_until <= ?`,
		false, entitlementdomain.TierFree, now, userID, true, now,
	).Error
}

func (r *repo) SetSubscription(ctx context.Context, db *gorm.DB, userID string, tier entitlementdomain.Tier, until time.Time, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entitlements
		 SET tier = ?, unlimited_until = ?, active_subscription = ?, updated_at = ?
		 WHERE user_id = ?`,
		tier, until, true, now, userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ClearSubscription(ctx context.Context, db *gorm.DB, userID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE entitlements
		 SET active_subscription = ?, tier = ?, updated_at = ?
		 WHERE user_id = ?`,
		false, entitlementdomain.TierFree, now, userID,
	).Error
}

func (r *repo) DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&entitlementdomain.Entitlement{}).Error
}
