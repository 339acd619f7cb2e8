package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/clock"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	"github.com/kittypup/kittypup/internal/entitlement/repository"
)

func setupService(t *testing.T) (*gorm.DB, entitlementdomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entitlementdomain.Entitlement{}))

	fc := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fc,
		Repo:  repository.Provide(),
	})
	return db, svc, fc
}

func TestGetCreatesDefaultRow(t *testing.T) {
	_, svc, _ := setupService(t)

	row, err := svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.TierFree, row.Tier)
	assert.Equal(t, entitlementdomain.DefaultCredits, row.CreditsRemaining)
	assert.False(t, row.ActiveSubscription)

	// A second read returns the same row, not a fresh grant.
	again, err := svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, row.CreditsRemaining, again.CreditsRemaining)
}

func TestGetRejectsEmptyUser(t *testing.T) {
	_, svc, _ := setupService(t)

	_, err := svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidUser)
}

func TestReserveConsumesExactlyOneCredit(t *testing.T) {
	_, svc, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.Reserve(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.TierFree, res.Tier)
	assert.False(t, res.UsedSubscription)

	row, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.CreditsRemaining)

	_, err = svc.Reserve(ctx, "user-1")
	assert.ErrorIs(t, err, entitlementdomain.ErrNoCredits)

	// The failed reservation must not have gone negative.
	row, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.CreditsRemaining)
}

func TestConcurrentReserveSingleCredit(t *testing.T) {
	// Shared-cache DSN so every pooled connection sees the same database.
	db, err := gorm.Open(sqlite.Open("file:reserve_concurrent?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entitlementdomain.Entitlement{}))

	fc := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fc,
		Repo:  repository.Provide(),
	})

	ctx := context.Background()
	_, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)

	const callers = 8
	results := make(chan error, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(ctx, "user-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, denied := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, entitlementdomain.ErrNoCredits)
			denied++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, denied)

	row, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.CreditsRemaining)
}

func TestReserveUnderActiveSubscription(t *testing.T) {
	_, svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.ActivateSubscription(ctx, "user-1", 30)
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, res.UsedSubscription)
	assert.Equal(t, entitlementdomain.TierMonthly, res.Tier)

	// Credits are untouched while the subscription window is open.
	row, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.DefaultCredits, row.CreditsRemaining)
}

func TestLazySubscriptionExpiry(t *testing.T) {
	_, svc, fc := setupService(t)
	ctx := context.Background()

	_, err := svc.ActivateSubscription(ctx, "user-1", 30)
	require.NoError(t, err)

	fc.Advance(31 * 24 * time.Hour)

	row, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, row.ActiveSubscription)
	assert.Equal(t, entitlementdomain.TierFree, row.Tier)
	assert.Nil(t, row.UnlimitedUntil)

	// Post-expiry reservations fall back to credits.
	res, err := svc.Reserve(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, res.UsedSubscription)

	row, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.CreditsRemaining)
}

func TestExpiryIsIdempotent(t *testing.T) {
	_, svc, fc := setupService(t)
	ctx := context.Background()

	_, err := svc.ActivateSubscription(ctx, "user-1", 30)
	require.NoError(t, err)
	fc.Advance(31 * 24 * time.Hour)

	first, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.CreditsRemaining, second.CreditsRemaining)
	assert.False(t, second.ActiveSubscription)
}

func TestGrantAddsCredits(t *testing.T) {
	_, svc, _ := setupService(t)
	ctx := context.Background()

	row, err := svc.Grant(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.DefaultCredits+10, row.CreditsRemaining)

	_, err = svc.Grant(ctx, "user-1", 0)
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidAmount)
	_, err = svc.Grant(ctx, "user-1", -5)
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidAmount)
}

func TestDeactivateSubscription(t *testing.T) {
	_, svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.ActivateSubscription(ctx, "user-1", 30)
	require.NoError(t, err)

	row, err := svc.DeactivateSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, row.ActiveSubscription)
	assert.Equal(t, entitlementdomain.TierFree, row.Tier)
}

func TestErase(t *testing.T) {
	db, svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Erase(ctx, "user-1"))

	var count int64
	require.NoError(t, db.Model(&entitlementdomain.Entitlement{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, svc.Erase(ctx, ""), entitlementdomain.ErrInvalidUser)
}
