package storage

import (
	"context"
	"time"
)

// Status is the lifecycle state of an execution. It only ever moves
// from pending to one of the terminal states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Execution is the durable record of one code submission.
type Execution struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Output    string    `json:"output"`
	Status    Status    `json:"status"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions controls filtering and pagination for ListExecutions.
type ListOptions struct {
	Status Status
	Limit  int
	Offset int
}

// Store is the persistence interface for execution records. The runner
// is the sole mutator of status and output after creation.
type Store interface {
	// CreateExecution inserts a new record. ID and SessionID must be
	// set by the caller; status starts as pending.
	CreateExecution(ctx context.Context, e *Execution) error

	// GetExecution returns a record by ID or unambiguous ID prefix.
	GetExecution(ctx context.Context, id string) (*Execution, error)

	// ListExecutions returns records ordered by created_at descending.
	ListExecutions(ctx context.Context, opts ListOptions) ([]Execution, error)

	// SetResult writes the terminal status and final output.
	SetResult(ctx context.Context, id string, status Status, output string) error

	// DeleteExecution removes a record.
	DeleteExecution(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
