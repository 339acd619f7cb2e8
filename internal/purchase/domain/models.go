package domain

import (
	"regexp"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Platform is the store a purchase was made on.
type Platform string

const (
	PlatformAppStore Platform = "app_store"
	PlatformPlayStore Platform = "play_store"
)

func (p Platform) Valid() bool {
	return p == PlatformAppStore || p == PlatformPlayStore
}

// Purchase is one applied store transaction. TransactionID carries a
// unique index so a replayed receipt can never grant twice.
type Purchase struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID         string       `gorm:"index;not null" json:"userId"`
	TransactionID  string       `gorm:"uniqueIndex;not null" json:"transactionId"`
	ProductID      string       `gorm:"not null" json:"productId"`
	Platform       Platform     `gorm:"not null" json:"platform"`
	CreditsGranted int          `json:"creditsGranted"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func (Purchase) TableName() string { return "purchases" }

// Grant is what a product id resolves to: either a credit pack or a
// subscription window in days.
type Grant struct {
	Credits          int
	SubscriptionDays int
}

const (
	monthlyDays  = 30
	lifetimeDays = 3650
)

var creditPackRe = regexp.MustCompile(`^credit_(\d+)$`)

// ResolveProduct maps a store product id to its grant. Unknown products
// return ErrUnknownProduct.
func ResolveProduct(productID string) (Grant, error) {
	switch productID {
	case "monthly":
		return Grant{SubscriptionDays: monthlyDays}, nil
	case "lifetime":
		return Grant{SubscriptionDays: lifetimeDays}, nil
	}
	if m := creditPackRe.FindStringSubmatch(productID); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Grant{}, ErrUnknownProduct
		}
		return Grant{Credits: n}, nil
	}
	return Grant{}, ErrUnknownProduct
}

// VerifyRequest is a client-submitted receipt awaiting verification.
type VerifyRequest struct {
	Platform      Platform `json:"platform" binding:"required"`
	ProductID     string   `json:"productId" binding:"required"`
	TransactionID string   `json:"transactionId" binding:"required"`
	Receipt       string   `json:"receipt" binding:"required"`
}

// Result reports what a verified purchase applied.
type Result struct {
	TransactionID    string `json:"transactionId"`
	ProductID        string `json:"productId"`
	CreditsGranted   int    `json:"creditsGranted"`
	SubscriptionDays int    `json:"subscriptionDays,omitempty"`
	AlreadyApplied   bool   `json:"alreadyApplied"`
}
