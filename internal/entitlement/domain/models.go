// Package domain contains the entitlement ledger model and contracts.
// The entitlement row is the sole authority on whether a user may start
// a generation job.
package domain

import (
	"time"
)

// Tier is the subscription tier recorded on the ledger.
type Tier string

const (
	TierFree     Tier = "free"
	TierMonthly  Tier = "monthly"
	TierLifetime Tier = "lifetime"
)

// Entitlement tracks a user's consumable credits and subscription window.
// One mutable row per user, created on first access.
type Entitlement struct {
	UserID             string     `gorm:"primaryKey" json:"userId"`
	Tier               Tier       `gorm:"type:text;not null;default:free" json:"tier"`
	CreditsRemaining   int        `gorm:"not null;default:0" json:"creditsRemaining"`
	UnlimitedUntil     *time.Time `gorm:"" json:"unlimitedUntil"`
	ActiveSubscription bool       `gorm:"not null;default:false" json:"activeSubscription"`
	CreatedAt          time.Time  `gorm:"not null" json:"-"`
	UpdatedAt          time.Time  `gorm:"not null" json:"-"`
}

// TableName sets the database table name.
func (Entitlement) TableName() string { return "entitlements" }

// SubscriptionActiveAt reports whether the subscription window covers t.
func (e *Entitlement) SubscriptionActiveAt(t time.Time) bool {
	return e.ActiveSubscription && e.UnlimitedUntil != nil && e.UnlimitedUntil.After(t)
}

// Reservation is the outcome of a successful Reserve call. Tier is the tier
// observed at the instant of reservation; callers derive the watermark flag
// from it and must not re-read the ledger afterwards.
type Reservation struct {
	Tier             Tier
	UsedSubscription bool
}

// DefaultCredits is granted to every newly created ledger row
// (one free watermarked image).
const DefaultCredits = 1
