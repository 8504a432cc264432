// Package reaper reconciles lock state independently of the dispatch path:
// expired leases are flipped promptly rather than lazily at the next
// acquisition attempt, and old history is purged to bound storage growth.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harperreed/glimpser-rs-sub000/internal/lock"
	"github.com/harperreed/glimpser-rs-sub000/internal/metrics"
	"github.com/harperreed/glimpser-rs-sub000/internal/store"
)

// reaperLockKey is the PostgreSQL advisory lock key used for reaper
// election. One reaper wins across all scheduler instances; the sweeps are
// idempotent, so a brief double-run after a failover is harmless.
const reaperLockKey = int64(0x474C5053)

const (
	expireInterval    = time.Minute
	retentionInterval = time.Hour

	// Instances whose heartbeat is older than this are marked dead.
	// Informational only — job recovery runs on lease expiry.
	deadInstanceAfter = 60 * time.Second
)

type Reaper struct {
	pool      *pgxpool.Pool
	locks     *lock.StoreManager
	execs     *store.Executions
	instances *store.Instances
	retention time.Duration
	logger    *slog.Logger
}

type Config struct {
	Pool      *pgxpool.Pool
	Locks     *lock.StoreManager
	Execs     *store.Executions
	Instances *store.Instances
	Retention time.Duration
	Logger    *slog.Logger
}

func New(cfg Config) *Reaper {
	return &Reaper{
		pool:      cfg.Pool,
		locks:     cfg.Locks,
		execs:     cfg.Execs,
		instances: cfg.Instances,
		retention: cfg.Retention,
		logger:    cfg.Logger,
	}
}

// Run competes for the advisory lock and runs the sweep loop on the winner.
// The lock is held on a dedicated connection so it auto-releases if the
// process crashes. Non-winners sleep and retry.
func (r *Reaper) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			r.logger.Error("reaper: acquire connection failed", "err", err)
			sleep(ctx, 5*time.Second)
			continue
		}

		var won bool
		err = conn.QueryRow(ctx,
			`SELECT pg_try_advisory_lock($1)`, reaperLockKey).Scan(&won)
		if err != nil || !won {
			conn.Release()
			sleep(ctx, 15*time.Second)
			continue
		}

		r.logger.Info("reaper: won election")
		r.runSweeps(ctx)
		conn.Release()
	}
}

// runSweeps ticks the two sweeps on their own intervals until ctx is
// cancelled or a sweep hits a store error (which drops the election so a
// healthier instance can take over).
func (r *Reaper) runSweeps(ctx context.Context) {
	expire := time.NewTicker(expireInterval)
	defer expire.Stop()
	retain := time.NewTicker(retentionInterval)
	defer retain.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expire.C:
			if err := r.expireSweep(ctx); err != nil {
				r.logger.Error("reaper: expiration sweep failed", "err", err)
				return
			}
		case <-retain.C:
			if err := r.retentionSweep(ctx); err != nil {
				r.logger.Error("reaper: retention sweep failed", "err", err)
				return
			}
		}
	}
}

// expireSweep flips acquired locks whose lease has passed, even when no
// instance is trying to acquire those jobs, and marks silent instances dead.
func (r *Reaper) expireSweep(ctx context.Context) error {
	n, err := r.locks.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.LocksExpiredTotal.Add(float64(n))
		r.logger.Info("reaper: expired stale locks", "count", n)
	}

	dead, err := r.instances.MarkDead(ctx, deadInstanceAfter)
	if err != nil {
		return err
	}
	if dead > 0 {
		r.logger.Info("reaper: marked instances dead", "count", dead)
	}
	return nil
}

// retentionSweep deletes finalized locks and completed executions older than
// the retention window.
func (r *Reaper) retentionSweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.retention)

	locks, err := r.locks.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	execs, err := r.execs.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if locks > 0 || execs > 0 {
		r.logger.Info("reaper: purged history",
			"locks", locks, "executions", execs, "cutoff", cutoff)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
