package run

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
)

// Workflow names owned by the orchestrator.
const (
	WorkflowSchedule = "schedule"
	WorkflowGenerate = "generate-thumbnail"
)

// Run is one attempt (possibly resumed) at executing a named pipeline,
// deduplicated by its idempotency key.
type Run struct {
	ID             core.ID          `json:"id"`
	WorkflowName   string           `json:"workflow_name"`
	IdempotencyKey string           `json:"idempotency_key"`
	Status         core.StatusType  `json:"status"`
	TriggeredBy    core.TriggerType `json:"triggered_by"`
	Input          map[string]any   `json:"input,omitempty"`
	Output         map[string]any   `json:"output,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
	LeaseExpiresAt *time.Time       `json:"lease_expires_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Step is one attempt at one pipeline step within a run. Steps are
// append-only history: a retried step produces a new row, never an update.
type Step struct {
	ID           core.ID         `json:"id"`
	RunID        core.ID         `json:"run_id"`
	StepName     string          `json:"step_name"`
	Status       core.StatusType `json:"status"`
	Request      map[string]any  `json:"request,omitempty"`
	Response     map[string]any  `json:"response,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// RunDB is the database projection of Run.
type RunDB struct {
	ID             core.ID          `db:"id"`
	WorkflowName   string           `db:"workflow_name"`
	IdempotencyKey string           `db:"idempotency_key"`
	Status         core.StatusType  `db:"status"`
	TriggeredBy    core.TriggerType `db:"triggered_by"`
	InputRaw       []byte           `db:"input"`
	OutputRaw      []byte           `db:"output"`
	ErrorMessage   sql.NullString   `db:"error_message"`
	StartedAt      sql.NullTime     `db:"started_at"`
	FinishedAt     sql.NullTime     `db:"finished_at"`
	LeaseExpiresAt sql.NullTime     `db:"lease_expires_at"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// ToRun converts RunDB to Run with proper JSON unmarshaling.
func (rdb *RunDB) ToRun() (*Run, error) {
	r := &Run{
		ID:             rdb.ID,
		WorkflowName:   rdb.WorkflowName,
		IdempotencyKey: rdb.IdempotencyKey,
		Status:         rdb.Status,
		TriggeredBy:    rdb.TriggeredBy,
		CreatedAt:      rdb.CreatedAt,
		UpdatedAt:      rdb.UpdatedAt,
	}
	if rdb.ErrorMessage.Valid {
		r.ErrorMessage = rdb.ErrorMessage.String
	}
	if rdb.StartedAt.Valid {
		t := rdb.StartedAt.Time.UTC()
		r.StartedAt = &t
	}
	if rdb.FinishedAt.Valid {
		t := rdb.FinishedAt.Time.UTC()
		r.FinishedAt = &t
	}
	if rdb.LeaseExpiresAt.Valid {
		t := rdb.LeaseExpiresAt.Time.UTC()
		r.LeaseExpiresAt = &t
	}
	var err error
	if r.Input, err = unmarshalPayload(rdb.InputRaw); err != nil {
		return nil, fmt.Errorf("unmarshaling run input: %w", err)
	}
	if r.Output, err = unmarshalPayload(rdb.OutputRaw); err != nil {
		return nil, fmt.Errorf("unmarshaling run output: %w", err)
	}
	return r, nil
}

func unmarshalPayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
