package stores

import (
	"context"
	"time"
)

// RunStatus represents the final status of a deploy or undeploy run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted record of one deploy or undeploy invocation.
type Run struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"` // deploy or undeploy
	Sources     string     `json:"sources"`   // JSON array of files
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RunItem is the persisted outcome of one entity within a run.
type RunItem struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Outcome   string    `json:"outcome"` // created, updated, unchanged, deleted, failed
	EntityID  *string   `json:"entity_id,omitempty"`
	Error     *string   `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the run history layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, runErr *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// RunItem operations
	AppendRunItem(ctx context.Context, item *RunItem) error
	ListRunItems(ctx context.Context, runID string) ([]*RunItem, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
