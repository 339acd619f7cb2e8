// Package domain contains the generation-job model and lifecycle contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PetType string

const (
	PetTypeCat PetType = "cat"
	PetTypeDog PetType = "dog"
)

func (p PetType) Valid() bool {
	return p == PetTypeCat || p == PetTypeDog
}

// Status is the job lifecycle state. Transitions are monotonic:
// pending → processing → {completed, failed}. Terminal states never change
// again, except for the retention sweep clearing input keys.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const (
	MinInputImages = 1
	MaxInputImages = 6
)

// Job is one generation request.
type Job struct {
	ID             snowflake.ID                `gorm:"primaryKey"`
	UserID         string                      `gorm:"not null;index:idx_jobs_user_id"`
	PetType        PetType                     `gorm:"type:text;not null"`
	Breed          *string                     `gorm:"type:text"`
	Status         Status                      `gorm:"type:text;not null;index:idx_jobs_status_created"`
	InputImageKeys datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ResultImageKey *string                     `gorm:"type:text"`
	IsWatermarked  bool                        `gorm:"not null"`
	Error          *string                     `gorm:"type:text"`
	CreatedAt      time.Time                   `gorm:"not null;index:idx_jobs_status_created"`
	UpdatedAt      time.Time                   `gorm:"not null"`
	CompletedAt    *time.Time                  `gorm:""`
}

// TableName sets the database table name.
func (Job) TableName() string { return "jobs" }

func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// View is the API shape of a job. ResultURL is resolved from the storage
// collaborator at read time and only present once the job completed.
type View struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	PetType        PetType    `json:"petType"`
	Breed          *string    `json:"breed"`
	Status         Status     `json:"status"`
	InputImageKeys []string   `json:"inputImageKeys"`
	ResultImageKey *string    `json:"resultImageKey"`
	ResultURL      *string    `json:"resultUrl"`
	IsWatermarked  bool       `json:"isWatermarked"`
	Error          *string    `json:"error"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
}

func (j *Job) ToView(resultURL *string) *View {
	return &View{
		ID:             j.ID.String(),
		UserID:         j.UserID,
		PetType:        j.PetType,
		Breed:          j.Breed,
		Status:         j.Status,
		InputImageKeys: j.InputImageKeys,
		ResultImageKey: j.ResultImageKey,
		ResultURL:      resultURL,
		IsWatermarked:  j.IsWatermarked,
		Error:          j.Error,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// CreateRequest is the validated input for job creation.
type CreateRequest struct {
	PetType   PetType  `json:"petType"`
	ImageKeys []string `json:"imageKeys"`
	Breed     *string  `json:"breed"`
}

func (r CreateRequest) Validate() error {
	if !r.PetType.Valid() {
		return ErrInvalidPetType
	}
	if len(r.ImageKeys) < MinInputImages || len(r.ImageKeys) > MaxInputImages {
		return ErrInvalidImageKeys
	}
	for _, key := range r.ImageKeys {
		if key == "" {
			return ErrInvalidImageKeys
		}
	}
	return nil
}

// ListResult is one page of a user's jobs, newest first.
type ListResult struct {
	Items      []*View `json:"items"`
	NextCursor string  `json:"nextCursor,omitempty"`
}
