package run

import (
	"context"
	"time"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// StepLogger appends step outcomes to a run's audit trail. It never
// propagates failures to the pipeline: losing an audit row is preferable
// to losing the business side-effect already performed, so persistence
// errors are reported to diagnostics only.
type StepLogger struct {
	repo Repository
}

func NewStepLogger(repo Repository) *StepLogger {
	return &StepLogger{repo: repo}
}

// Log records one completed step attempt.
func (l *StepLogger) Log(
	ctx context.Context,
	runID core.ID,
	stepName string,
	status core.StatusType,
	request, response map[string]any,
	stepErr error,
) {
	now := time.Now().UTC()
	s := &Step{
		ID:        core.MustNewID(),
		RunID:     runID,
		StepName:  stepName,
		Status:    status,
		Request:   request,
		Response:  response,
		StartedAt: now,
	}
	finished := now
	s.FinishedAt = &finished
	if stepErr != nil {
		s.ErrorMessage = stepErr.Error()
	}
	if err := l.repo.AppendStep(ctx, s); err != nil {
		logger.FromContext(ctx).Warn("failed to record run step",
			"run_id", runID, "step", stepName, "error", err)
	}
}

// Success records a successful step.
func (l *StepLogger) Success(ctx context.Context, runID core.ID, step string, request, response map[string]any) {
	l.Log(ctx, runID, step, core.StatusSuccess, request, response, nil)
}

// Failure records a failed step with its triggering error.
func (l *StepLogger) Failure(ctx context.Context, runID core.ID, step string, request map[string]any, err error) {
	l.Log(ctx, runID, step, core.StatusFailed, request, nil, err)
}

// Skip records a deliberately skipped step.
func (l *StepLogger) Skip(ctx context.Context, runID core.ID, step string, response map[string]any) {
	l.Log(ctx, runID, step, core.StatusSkipped, nil, response, nil)
}
