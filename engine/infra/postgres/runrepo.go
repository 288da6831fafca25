package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
)

const pgUniqueViolation = "23505"

const runColumns = "id, workflow_name, idempotency_key, status, triggered_by, " +
	"input, output, error_message, started_at, finished_at, lease_expires_at, " +
	"created_at, updated_at"

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunRepo implements run.Repository backed by a pgx-compatible pool.
type RunRepo struct {
	db DB
}

func NewRunRepo(db DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, key string) (*run.Run, error) {
	query := "SELECT " + runColumns + " FROM workflow_runs WHERE idempotency_key = $1"
	var rdb run.RunDB
	if err := pgxscan.Get(ctx, r.db, &rdb, query, key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return rdb.ToRun()
}

func (r *RunRepo) Create(ctx context.Context, rn *run.Run) error {
	input, err := ToJSONB(rn.Input)
	if err != nil {
		return fmt.Errorf("marshaling input: %w", err)
	}
	output, err := ToJSONB(rn.Output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	query := `
        INSERT INTO workflow_runs
            (id, workflow_name, idempotency_key, status, triggered_by, input, output, started_at, lease_expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err = r.db.Exec(ctx, query,
		rn.ID, rn.WorkflowName, rn.IdempotencyKey, rn.Status, rn.TriggeredBy,
		input, output, toNullableTime(rn.StartedAt), toNullableTime(rn.LeaseExpiresAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return run.ErrConflict
		}
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (r *RunRepo) Resume(ctx context.Context, id core.ID, lease time.Duration) (*run.Run, error) {
	query := `
        UPDATE workflow_runs
        SET status = $2, error_message = NULL, started_at = now(),
            finished_at = NULL, lease_expires_at = now() + make_interval(secs => $3), updated_at = now()
        WHERE id = $1
        RETURNING ` + runColumns
	var rdb run.RunDB
	if err := pgxscan.Get(ctx, r.db, &rdb, query, id, core.StatusRunning, lease.Seconds()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("resuming run: %w", err)
	}
	return rdb.ToRun()
}

func (r *RunRepo) Finalize(
	ctx context.Context,
	id core.ID,
	status core.StatusType,
	output map[string]any,
	errMsg string,
) error {
	outJSON, err := ToJSONB(output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	query := `
        UPDATE workflow_runs
        SET status = $2, output = $3, error_message = NULLIF($4, ''),
            finished_at = now(), lease_expires_at = NULL, updated_at = now()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, id, status, outJSON, errMsg)
	if err != nil {
		return fmt.Errorf("finalizing run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return run.ErrRunNotFound
	}
	return nil
}

// ClaimQueued is a single atomic conditional update: only one caller can
// move a queued run to running, so concurrent drains cannot process the
// same run twice.
func (r *RunRepo) ClaimQueued(ctx context.Context, id core.ID, lease time.Duration) (bool, error) {
	query := `
        UPDATE workflow_runs
        SET status = $2, started_at = now(), error_message = NULL,
            lease_expires_at = now() + make_interval(secs => $3), updated_at = now()
        WHERE id = $1 AND status = $4
    `
	tag, err := r.db.Exec(ctx, query, id, core.StatusRunning, lease.Seconds(), core.StatusQueued)
	if err != nil {
		return false, fmt.Errorf("claiming run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RunRepo) ListQueued(ctx context.Context, workflow string, limit int) ([]*run.Run, error) {
	sb := squirrel.Select(runColumns).
		From("workflow_runs").
		Where("workflow_name = ?", workflow).
		Where("status = ?", core.StatusQueued).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*run.RunDB
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning queued runs: %w", err)
	}
	runs := make([]*run.Run, 0, len(rows))
	for _, rdb := range rows {
		rn, err := rdb.ToRun()
		if err != nil {
			return nil, fmt.Errorf("converting run: %w", err)
		}
		runs = append(runs, rn)
	}
	return runs, nil
}

func (r *RunRepo) CountQueued(ctx context.Context, workflow string) (int, error) {
	query := "SELECT COUNT(*) FROM workflow_runs WHERE workflow_name = $1 AND status = $2"
	var count int
	if err := r.db.QueryRow(ctx, query, workflow, core.StatusQueued).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting queued runs: %w", err)
	}
	return count, nil
}

// SweepExpiredLeases recovers runs orphaned in running state by a crashed
// process. Queue-triggered runs go back to queued for the next drain;
// webhook-triggered ones are failed since their trigger event is gone.
func (r *RunRepo) SweepExpiredLeases(ctx context.Context, now time.Time) (int, int, error) {
	requeueQuery := `
        UPDATE workflow_runs
        SET status = $1, started_at = NULL, lease_expires_at = NULL, updated_at = now()
        WHERE status = $2 AND triggered_by = $3 AND lease_expires_at IS NOT NULL AND lease_expires_at < $4
    `
	tag, err := r.db.Exec(ctx, requeueQuery,
		core.StatusQueued, core.StatusRunning, core.TriggerQueue, now)
	if err != nil {
		return 0, 0, fmt.Errorf("requeuing expired runs: %w", err)
	}
	requeued := int(tag.RowsAffected())
	failQuery := `
        UPDATE workflow_runs
        SET status = $1, error_message = $2, finished_at = now(),
            lease_expires_at = NULL, updated_at = now()
        WHERE status = $3 AND lease_expires_at IS NOT NULL AND lease_expires_at < $4
    `
	tag, err = r.db.Exec(ctx, failQuery,
		core.StatusFailed, "lease expired before completion", core.StatusRunning, now)
	if err != nil {
		return requeued, 0, fmt.Errorf("failing expired runs: %w", err)
	}
	return requeued, int(tag.RowsAffected()), nil
}

func (r *RunRepo) AppendStep(ctx context.Context, s *run.Step) error {
	request, err := ToJSONB(s.Request)
	if err != nil {
		return fmt.Errorf("marshaling step request: %w", err)
	}
	response, err := ToJSONB(s.Response)
	if err != nil {
		return fmt.Errorf("marshaling step response: %w", err)
	}
	query := `
        INSERT INTO workflow_run_steps
            (id, run_id, step_name, status, request, response, error_message, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
    `
	_, err = r.db.Exec(ctx, query,
		s.ID, s.RunID, s.StepName, s.Status, request, response,
		s.ErrorMessage, s.StartedAt, toNullableTime(s.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting step: %w", err)
	}
	return nil
}

func (r *RunRepo) ListSteps(ctx context.Context, runID core.ID) ([]*run.Step, error) {
	query := `
        SELECT id, run_id, step_name, status, request, response, error_message, started_at, finished_at
        FROM workflow_run_steps
        WHERE run_id = $1
        ORDER BY started_at ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()
	var steps []*run.Step
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps: %w", err)
	}
	return steps, nil
}

func toNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
