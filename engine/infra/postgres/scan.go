package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
)

func scanStep(rows pgx.Rows) (*run.Step, error) {
	var (
		s            run.Step
		request      []byte
		response     []byte
		errorMessage sql.NullString
		finishedAt   sql.NullTime
	)
	if err := rows.Scan(
		&s.ID, &s.RunID, &s.StepName, &s.Status,
		&request, &response, &errorMessage, &s.StartedAt, &finishedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning step: %w", err)
	}
	if errorMessage.Valid {
		s.ErrorMessage = errorMessage.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		s.FinishedAt = &t
	}
	if len(request) > 0 {
		if err := json.Unmarshal(request, &s.Request); err != nil {
			return nil, fmt.Errorf("unmarshaling step request: %w", err)
		}
	}
	if len(response) > 0 {
		if err := json.Unmarshal(response, &s.Response); err != nil {
			return nil, fmt.Errorf("unmarshaling step response: %w", err)
		}
	}
	return &s, nil
}
