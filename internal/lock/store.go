package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harperreed/glimpser-rs-sub000/internal/metrics"
)

// StoreManager implements Manager against the shared PostgreSQL store.
type StoreManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStoreManager(pool *pgxpool.Pool, logger *slog.Logger) *StoreManager {
	return &StoreManager{pool: pool, logger: logger}
}

// acquireSQL succeeds only when no acquired row exists for the job. The
// partial unique index uq_job_locks_acquired makes the insert the single
// atomic arbitration point; everything else in the scheduler can be
// read-then-write.
const acquireSQL = `
INSERT INTO job_locks
	(id, job_id, execution_id, instance_id, locked_at, lease_expires_at, status)
VALUES ($1, $2, $3, $4, NOW(), NOW() + ($5 * interval '1 second'), 'acquired')
ON CONFLICT (job_id) WHERE status = 'acquired' DO NOTHING
RETURNING locked_at, lease_expires_at`

// reclaimSQL expires a job's stale lock and finalizes the execution it was
// protecting in the same statement. The lock and its execution always settle
// together: without the second update a crashed holder would leave a running
// row behind forever, and the takeover would add a second one.
const reclaimSQL = `
WITH reclaimed AS (
	UPDATE job_locks SET status = 'expired'
	WHERE job_id = $1
	  AND status = 'acquired'
	  AND lease_expires_at < NOW()
	RETURNING execution_id
),
finalized AS (
	UPDATE job_executions e SET
		status       = 'failed',
		completed_at = NOW(),
		duration_ms  = (EXTRACT(EPOCH FROM (NOW() - e.started_at)) * 1000)::BIGINT,
		error        = 'lease expired'
	FROM reclaimed r
	WHERE e.id = r.execution_id
	  AND e.status = 'running'
	RETURNING e.id
)
SELECT COUNT(*) FROM reclaimed`

func (m *StoreManager) TryAcquire(
	ctx context.Context,
	jobID, executionID uuid.UUID,
	instanceID string,
	lease time.Duration,
) (*Token, error) {
	// Reclaim first: an acquired row whose lease has passed no longer
	// protects anything. Flipping it to expired here allows takeover without
	// the holder's cooperation.
	var reclaimed int64
	if err := m.pool.QueryRow(ctx, reclaimSQL, jobID).Scan(&reclaimed); err != nil {
		return nil, fmt.Errorf("reclaim expired lock: %w", err)
	}
	takeover := reclaimed > 0

	token := &Token{
		LockID:      uuid.New(),
		JobID:       jobID,
		ExecutionID: executionID,
		InstanceID:  instanceID,
	}

	var lockedAt time.Time
	err := m.pool.QueryRow(ctx, acquireSQL,
		token.LockID, jobID, executionID, instanceID, int(lease.Seconds()),
	).Scan(&lockedAt, &token.LeaseExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race: a valid lease is held elsewhere, or another
		// instance reclaimed and re-acquired between our two statements.
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	if takeover {
		metrics.LockTakeoversTotal.Inc()
		m.logger.Info("lock takeover after lease expiry",
			"job_id", jobID,
			"instance_id", instanceID)
	}
	return token, nil
}

func (m *StoreManager) Renew(ctx context.Context, token *Token, lease time.Duration) error {
	var expires time.Time
	err := m.pool.QueryRow(ctx, `
		UPDATE job_locks
		SET lease_expires_at = NOW() + ($3 * interval '1 second')
		WHERE id = $1
		  AND instance_id = $2
		  AND status = 'acquired'
		  AND lease_expires_at > NOW()
		RETURNING lease_expires_at`,
		token.LockID, token.InstanceID, int(lease.Seconds()),
	).Scan(&expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrLeaseLost
	}
	if err != nil {
		return fmt.Errorf("renew lock: %w", err)
	}
	token.LeaseExpiresAt = expires
	return nil
}

func (m *StoreManager) Release(ctx context.Context, token *Token) (bool, error) {
	tag, err := m.pool.Exec(ctx, `
		UPDATE job_locks SET
			status      = 'released',
			released_at = NOW()
		WHERE id = $1
		  AND instance_id = $2
		  AND status = 'acquired'`,
		token.LockID, token.InstanceID)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// expireStaleSQL mirrors reclaimSQL across all jobs: every expired lock's
// execution is finalized in the same sweep.
const expireStaleSQL = `
WITH expired AS (
	UPDATE job_locks SET status = 'expired'
	WHERE status = 'acquired'
	  AND lease_expires_at < NOW()
	RETURNING execution_id
),
finalized AS (
	UPDATE job_executions e SET
		status       = 'failed',
		completed_at = NOW(),
		duration_ms  = (EXTRACT(EPOCH FROM (NOW() - e.started_at)) * 1000)::BIGINT,
		error        = 'lease expired'
	FROM expired x
	WHERE e.id = x.execution_id
	  AND e.status = 'running'
	RETURNING e.id
)
SELECT COUNT(*) FROM expired`

func (m *StoreManager) ExpireStale(ctx context.Context) (int64, error) {
	var n int64
	if err := m.pool.QueryRow(ctx, expireStaleSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("expire stale locks: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes finalized lock rows past the retention window.
// Acquired rows are never deleted.
func (m *StoreManager) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := m.pool.Exec(ctx, `
		DELETE FROM job_locks
		WHERE status IN ('released', 'expired')
		  AND locked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge locks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (m *StoreManager) Stats(ctx context.Context) (Stats, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM job_locks GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("lock stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case "acquired":
			stats.Acquired = count
		case "released":
			stats.Released = count
		case "expired":
			stats.Expired = count
		}
	}
	return stats, rows.Err()
}

var _ Manager = (*StoreManager)(nil)
