package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// DispatchMessage is the payload handed to the dispatch queue for one
// accepted job. IsWatermarked is fixed at creation time and travels with
// the message so the compute worker never re-reads the ledger.
type DispatchMessage struct {
	JobID         snowflake.ID `json:"jobId"`
	UserID        string       `json:"userId"`
	PetType       PetType      `json:"petType"`
	ImageKeys     []string     `json:"imageKeys"`
	Breed         *string      `json:"breed,omitempty"`
	IsWatermarked bool         `json:"isWatermarked"`
}

// Enqueuer hands accepted jobs to the dispatch queue. The lifecycle manager
// receives it by injection; queue lifecycle is owned by the process entry
// point.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg DispatchMessage) error
}

// WorkerResult is the tagged outcome reported by the external compute
// worker, decoded once at the HTTP boundary.
type WorkerResult struct {
	JobID     snowflake.ID
	Success   bool
	ResultKey string
	Error     string
}

type Service interface {
	// Create reserves an entitlement, persists the job as pending and
	// enqueues it. A denied reservation performs no further action. An
	// enqueue failure marks the job failed immediately; the consumed
	// credit is not refunded (dispatch is a billable attempt).
	Create(ctx context.Context, userID string, req CreateRequest) (*View, error)

	// Get is an ownership-scoped read; ErrNotFound for unknown ids and
	// for jobs owned by someone else.
	Get(ctx context.Context, userID string, jobID snowflake.ID) (*View, error)

	List(ctx context.Context, userID string, limit int, cursor string) (*ListResult, error)

	// CompleteFromWorker applies the terminal transition. Idempotent: a
	// duplicate delivery for an already-terminal job is a silent no-op.
	// Unknown job ids return ErrNotFound.
	CompleteFromWorker(ctx context.Context, result WorkerResult) error

	// MarkProcessing records that the compute worker accepted the job.
	MarkProcessing(ctx context.Context, jobID snowflake.ID) error
}
