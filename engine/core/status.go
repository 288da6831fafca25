package core

// -----------------------------------------------------------------------------
// Run Status
// -----------------------------------------------------------------------------

// StatusType is the lifecycle state of a workflow run or step.
// Runs only move forward: queued -> running -> {success, failed, skipped}.
// The single permitted regression is an explicit retry of a failed run,
// which transitions back to running and clears the recorded error.
type StatusType string

const (
	StatusQueued  StatusType = "queued"
	StatusRunning StatusType = "running"
	StatusSuccess StatusType = "success"
	StatusFailed  StatusType = "failed"
	StatusSkipped StatusType = "skipped"
)

func (s StatusType) String() string {
	return string(s)
}

// IsTerminal reports whether the status ends a run's lifecycle.
func (s StatusType) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition.
func (s StatusType) CanTransitionTo(next StatusType) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning
	case StatusRunning:
		return next.IsTerminal()
	case StatusFailed:
		// Retry-from-failed resume.
		return next == StatusRunning
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Trigger provenance
// -----------------------------------------------------------------------------

type TriggerType string

const (
	TriggerWebhook TriggerType = "webhook"
	TriggerQueue   TriggerType = "queue"
	TriggerManual  TriggerType = "manual"
)
