package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// Registry creates, resumes and finalizes workflow runs keyed by their
// idempotency key.
type Registry struct {
	repo  Repository
	lease time.Duration
}

func NewRegistry(repo Repository, lease time.Duration) *Registry {
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	return &Registry{repo: repo, lease: lease}
}

// CreateOrResume resolves the run for the given idempotency key. An
// existing run that cannot legally move back to running (success, skipped,
// or one still in flight) is returned with duplicate=true and no state is
// touched. Otherwise the run is created, or the failed or queued one
// re-driven, and left in running state.
func (g *Registry) CreateOrResume(
	ctx context.Context,
	workflow, key string,
	triggeredBy core.TriggerType,
	input map[string]any,
) (*Run, bool, error) {
	existing, err := g.repo.GetByIdempotencyKey(ctx, key)
	if err != nil && !errors.Is(err, ErrRunNotFound) {
		return nil, false, fmt.Errorf("looking up run by key: %w", err)
	}
	if existing != nil {
		if !existing.Status.CanTransitionTo(core.StatusRunning) {
			return existing, true, nil
		}
		resumed, err := g.repo.Resume(ctx, existing.ID, g.lease)
		if err != nil {
			return nil, false, fmt.Errorf("resuming run %s: %w", existing.ID, err)
		}
		return resumed, false, nil
	}
	now := time.Now().UTC()
	r := &Run{
		ID:             core.MustNewID(),
		WorkflowName:   workflow,
		IdempotencyKey: key,
		Status:         core.StatusRunning,
		TriggeredBy:    triggeredBy,
		Input:          input,
		StartedAt:      &now,
	}
	lease := now.Add(g.lease)
	r.LeaseExpiresAt = &lease
	if err := g.repo.Create(ctx, r); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost a create race; fall back to resume-or-duplicate.
			return g.CreateOrResume(ctx, workflow, key, triggeredBy, input)
		}
		return nil, false, fmt.Errorf("creating run: %w", err)
	}
	return r, false, nil
}

// Enqueue records a run in queued state for later drainage. A key that
// already exists leaves the prior run untouched.
func (g *Registry) Enqueue(
	ctx context.Context,
	workflow, key string,
	triggeredBy core.TriggerType,
	input map[string]any,
) (*Run, error) {
	r := &Run{
		ID:             core.MustNewID(),
		WorkflowName:   workflow,
		IdempotencyKey: key,
		Status:         core.StatusQueued,
		TriggeredBy:    triggeredBy,
		Input:          input,
	}
	if err := g.repo.Create(ctx, r); err != nil {
		if errors.Is(err, ErrConflict) {
			return g.repo.GetByIdempotencyKey(ctx, key)
		}
		return nil, fmt.Errorf("enqueuing run: %w", err)
	}
	return r, nil
}

// Finalize writes the run's terminal status exactly once per logical
// attempt. Pipelines guarantee the call via their top-level recover.
func (g *Registry) Finalize(
	ctx context.Context,
	id core.ID,
	status core.StatusType,
	output map[string]any,
	errMsg string,
) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", status)
	}
	if err := g.repo.Finalize(ctx, id, status, output, errMsg); err != nil {
		return fmt.Errorf("finalizing run %s: %w", id, err)
	}
	logger.FromContext(ctx).Info("run finalized", "run_id", id, "status", status)
	return nil
}
