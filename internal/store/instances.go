package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Instances tracks scheduler processes for observability. Lock correctness
// never depends on these rows — a crashed instance is handled by lease
// expiry, not by its liveness status.
type Instances struct {
	pool *pgxpool.Pool
}

func NewInstances(pool *pgxpool.Pool) *Instances {
	return &Instances{pool: pool}
}

// Register upserts this instance's row. Safe to call on restart — ON
// CONFLICT refreshes the heartbeat and re-marks the instance active.
func (i *Instances) Register(ctx context.Context, id, hostname string, pid int) error {
	_, err := i.pool.Exec(ctx, `
		INSERT INTO scheduler_instances (id, hostname, pid)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
			SET hostname       = EXCLUDED.hostname,
			    pid            = EXCLUDED.pid,
			    status         = 'active',
			    last_heartbeat = NOW()`,
		id, hostname, pid)
	if err != nil {
		return fmt.Errorf("register instance: %w", err)
	}
	return nil
}

func (i *Instances) Heartbeat(ctx context.Context, id string) error {
	_, err := i.pool.Exec(ctx,
		`UPDATE scheduler_instances SET last_heartbeat = NOW() WHERE id = $1`, id)
	return err
}

// MarkDead flips instances whose heartbeat is older than the threshold.
func (i *Instances) MarkDead(ctx context.Context, threshold time.Duration) (int64, error) {
	tag, err := i.pool.Exec(ctx, `
		UPDATE scheduler_instances SET status = 'dead'
		WHERE status = 'active'
		  AND last_heartbeat < NOW() - ($1 * interval '1 second')`,
		int(threshold.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("mark dead instances: %w", err)
	}
	return tag.RowsAffected(), nil
}
