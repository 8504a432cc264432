package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
)

// Jobs provides CRUD over scheduled job definitions.
type Jobs struct {
	pool *pgxpool.Pool
}

func NewJobs(pool *pgxpool.Pool) *Jobs {
	return &Jobs{pool: pool}
}

const jobColumns = `
	id, name, kind, schedule, params, enabled, max_retries, timeout_seconds,
	priority, tags, created_by, next_due_at, last_run_at, created_at, updated_at`

// Create inserts a job definition. The caller is responsible for having
// validated the schedule and kind; NextDueAt must already be computed.
func (j *Jobs) Create(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs
			(id, name, kind, schedule, params, enabled, max_retries,
			 timeout_seconds, priority, tags, created_by, next_due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.Name, string(job.Kind), job.Schedule, job.Params,
		job.Enabled, job.MaxRetries, int(job.Timeout.Seconds()),
		job.Priority, job.Tags, job.CreatedBy, job.NextDueAt)
	if err != nil {
		return fmt.Errorf("insert scheduled job: %w", err)
	}
	return nil
}

func (j *Jobs) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledJob, error) {
	row := j.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// List returns all job definitions, newest first.
func (j *Jobs) List(ctx context.Context) ([]domain.ScheduledJob, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Update rewrites the mutable fields of a definition.
func (j *Jobs) Update(ctx context.Context, job *domain.ScheduledJob) error {
	tag, err := j.pool.Exec(ctx, `
		UPDATE scheduled_jobs SET
			name            = $2,
			kind            = $3,
			schedule        = $4,
			params          = $5,
			enabled         = $6,
			max_retries     = $7,
			timeout_seconds = $8,
			priority        = $9,
			tags            = $10,
			next_due_at     = $11,
			updated_at      = NOW()
		WHERE id = $1`,
		job.ID, job.Name, string(job.Kind), job.Schedule, job.Params,
		job.Enabled, job.MaxRetries, int(job.Timeout.Seconds()),
		job.Priority, job.Tags, job.NextDueAt)
	if err != nil {
		return fmt.Errorf("update scheduled job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (j *Jobs) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := j.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled toggles the enabled flag (pause / resume).
func (j *Jobs) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := j.pool.Exec(ctx, `
		UPDATE scheduled_jobs SET enabled = $2, updated_at = NOW()
		WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DistinctKinds returns every kind referenced by a stored job, for startup
// validation against the executor registry.
func (j *Jobs) DistinctKinds(ctx context.Context) ([]domain.JobKind, error) {
	rows, err := j.pool.Query(ctx, `SELECT DISTINCT kind FROM scheduled_jobs`)
	if err != nil {
		return nil, fmt.Errorf("distinct kinds: %w", err)
	}
	defer rows.Close()

	var kinds []domain.JobKind
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		kinds = append(kinds, domain.JobKind(k))
	}
	return kinds, rows.Err()
}

// DueCandidates returns enabled jobs whose due time has passed and which hold
// no acquired lock, ordered by priority descending then due time ascending.
// The ordering is a contract: it determines fairness under contention.
//
// The NOT EXISTS filter is advisory — it trims candidates another instance
// already owns, but the lock acquisition itself is the only arbiter.
func (j *Jobs) DueCandidates(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM scheduled_jobs sj
		WHERE enabled
		  AND next_due_at IS NOT NULL
		  AND next_due_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM job_locks jl
			WHERE jl.job_id = sj.id AND jl.status = 'acquired'
		  )
		ORDER BY priority DESC, next_due_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due candidates: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// AdvanceNextDue records that an occurrence was taken and schedules the next.
func (j *Jobs) AdvanceNextDue(ctx context.Context, id uuid.UUID, nextDue time.Time, lastRun time.Time) error {
	_, err := j.pool.Exec(ctx, `
		UPDATE scheduled_jobs
		SET next_due_at = $2, last_run_at = $3, updated_at = NOW()
		WHERE id = $1`, id, nextDue, lastRun)
	if err != nil {
		return fmt.Errorf("advance next due: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.ScheduledJob, error) {
	var job domain.ScheduledJob
	var kind string
	var timeoutSecs int

	err := row.Scan(
		&job.ID, &job.Name, &kind, &job.Schedule, &job.Params,
		&job.Enabled, &job.MaxRetries, &timeoutSecs, &job.Priority,
		&job.Tags, &job.CreatedBy, &job.NextDueAt, &job.LastRunAt,
		&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Kind = domain.JobKind(kind)
	job.Timeout = time.Duration(timeoutSecs) * time.Second
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.ScheduledJob, error) {
	var jobs []domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
