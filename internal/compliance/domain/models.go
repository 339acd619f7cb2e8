package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"

	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	purchasedomain "github.com/kittypup/kittypup/internal/purchase/domain"
)

// DeletionStatus tracks an erasure request through its lifecycle. A failed
// run reverts to pending so the request is retried rather than lost.
type DeletionStatus string

const (
	DeletionPending    DeletionStatus = "pending"
	DeletionProcessing DeletionStatus = "processing"
	DeletionCompleted  DeletionStatus = "completed"
)

type DeletionRequest struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID      string         `gorm:"index;not null" json:"userId"`
	Status      DeletionStatus `gorm:"index;not null" json:"status"`
	RequestedAt time.Time      `json:"requestedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

func (DeletionRequest) TableName() string { return "deletion_requests" }

// Export is the user's data bundle for a portability request.
type Export struct {
	UserID      string                         `json:"userId"`
	GeneratedAt time.Time                      `json:"generatedAt"`
	Entitlement *entitlementdomain.Entitlement `json:"entitlement"`
	Jobs        []jobdomain.Job                `json:"jobs"`
	Purchases   []purchasedomain.Purchase      `json:"purchases"`
}
