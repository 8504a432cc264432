package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
)

// Executions records dispatch attempts. A row is inserted when the lock is
// won (not at completion) so a crash mid-execution still leaves an audit
// trail; the reaper's lease expiry accounts for the missing finish.
type Executions struct {
	pool *pgxpool.Pool
}

func NewExecutions(pool *pgxpool.Pool) *Executions {
	return &Executions{pool: pool}
}

// Create inserts the execution row in the running state.
func (e *Executions) Create(ctx context.Context, exec *domain.JobExecution) error {
	_, err := e.pool.Exec(ctx, `
		INSERT INTO job_executions
			(id, job_id, status, started_at, retry_count, instance_id)
		VALUES ($1, $2, 'running', NOW(), 0, $3)`,
		exec.ID, exec.JobID, exec.InstanceID)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Finish moves an execution to a terminal status. The row is only touched
// while still running, so a finish racing a reaper takeover is a no-op.
func (e *Executions) Finish(
	ctx context.Context,
	id uuid.UUID,
	status domain.ExecutionStatus,
	result json.RawMessage,
	execErr error,
	retryCount int,
) error {
	if !status.Terminal() {
		return fmt.Errorf("finish with non-terminal status %q", status)
	}
	var errMsg *string
	if execErr != nil {
		s := execErr.Error()
		errMsg = &s
	}
	_, err := e.pool.Exec(ctx, `
		UPDATE job_executions SET
			status       = $2,
			completed_at = NOW(),
			duration_ms  = (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::BIGINT,
			result       = $3,
			error        = $4,
			retry_count  = $5
		WHERE id = $1
		  AND status = 'running'`,
		id, string(status), result, errMsg, retryCount)
	if err != nil {
		return fmt.Errorf("finish execution: %w", err)
	}
	return nil
}

func (e *Executions) GetByID(ctx context.Context, id uuid.UUID) (*domain.JobExecution, error) {
	row := e.pool.QueryRow(ctx, `
		SELECT id, job_id, status, started_at, completed_at, duration_ms,
		       result, error, retry_count, instance_id
		FROM job_executions WHERE id = $1`, id)
	return scanExecution(row)
}

// ListByJob returns a job's most recent executions.
func (e *Executions) ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]domain.JobExecution, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT id, job_id, status, started_at, completed_at, duration_ms,
		       result, error, retry_count, instance_id
		FROM job_executions
		WHERE job_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.JobExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// PurgeOlderThan deletes terminal executions completed before the cutoff.
// Running rows are never purged regardless of age.
func (e *Executions) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := e.pool.Exec(ctx, `
		DELETE FROM job_executions
		WHERE completed_at IS NOT NULL
		  AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge executions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanExecution(row pgx.Row) (*domain.JobExecution, error) {
	var exec domain.JobExecution
	var status string
	var durationMS *int64

	err := row.Scan(
		&exec.ID, &exec.JobID, &status, &exec.StartedAt, &exec.CompletedAt,
		&durationMS, &exec.Result, &exec.Error, &exec.RetryCount,
		&exec.InstanceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	exec.Status = domain.ExecutionStatus(status)
	if durationMS != nil {
		exec.Duration = time.Duration(*durationMS) * time.Millisecond
	}
	return &exec, nil
}
