package run

import (
	"context"
	"errors"
	"time"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
)

var (
	// ErrRunNotFound indicates no run matched the lookup.
	ErrRunNotFound = errors.New("workflow run not found")
	// ErrConflict indicates the idempotency key already exists; the
	// caller should resume the existing run instead of creating one.
	ErrConflict = errors.New("idempotency key already exists")
)

// Repository persists workflow runs and their append-only step history.
type Repository interface {
	// GetByIdempotencyKey returns the run for the key, or ErrRunNotFound.
	GetByIdempotencyKey(ctx context.Context, key string) (*Run, error)

	// Create inserts a new run. Returns ErrConflict when the
	// idempotency key is already taken.
	Create(ctx context.Context, r *Run) error

	// Resume moves a run to running, stamps started_at, clears any
	// recorded error and renews the lease. Used both for the first
	// attempt and for re-driving a previously failed run.
	Resume(ctx context.Context, id core.ID, lease time.Duration) (*Run, error)

	// Finalize writes the terminal status, output or error message, and
	// finished_at.
	Finalize(ctx context.Context, id core.ID, status core.StatusType, output map[string]any, errMsg string) error

	// ClaimQueued atomically transitions a run from queued to running,
	// reporting whether this caller won the claim. A run already claimed
	// by a concurrent drain yields (false, nil).
	ClaimQueued(ctx context.Context, id core.ID, lease time.Duration) (bool, error)

	// ListQueued returns up to limit queued runs for the workflow,
	// oldest first.
	ListQueued(ctx context.Context, workflow string, limit int) ([]*Run, error)

	// CountQueued counts queued runs remaining for the workflow.
	CountQueued(ctx context.Context, workflow string) (int, error)

	// SweepExpiredLeases requeues drained runs whose lease expired while
	// running, and fails expired webhook-triggered runs (their trigger
	// event is gone, so they cannot be re-driven safely).
	SweepExpiredLeases(ctx context.Context, now time.Time) (requeued, failed int, err error)

	// AppendStep inserts one step row.
	AppendStep(ctx context.Context, s *Step) error

	// ListSteps returns a run's steps in chronological order.
	ListSteps(ctx context.Context, runID core.ID) ([]*Step, error)
}
