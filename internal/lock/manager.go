// Package lock arbitrates per-job leases. At most one acquired lock exists
// per job at any instant; the store enforces this with a partial unique
// index, because only the store can resolve races between independent
// processes.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrConflict is returned when another holder owns the job. It is the
// expected outcome under contention, not a failure — the dispatch loop skips
// the candidate and moves on.
var ErrConflict = errors.New("job lock held by another instance")

// ErrLeaseLost is returned by Renew when the lease has expired or been taken
// over. The holder must stop assuming exclusivity.
var ErrLeaseLost = errors.New("job lock lease expired or taken over")

// Token proves ownership of one acquired lock. All mutations of the lock row
// are fenced on the token's lock ID and instance ID.
type Token struct {
	LockID         uuid.UUID
	JobID          uuid.UUID
	ExecutionID    uuid.UUID
	InstanceID     string
	LeaseExpiresAt time.Time
}

// Stats counts lock rows by status.
type Stats struct {
	Acquired int64 `json:"acquired"`
	Released int64 `json:"released"`
	Expired  int64 `json:"expired"`
}

// Manager acquires, renews, releases, and expires per-job leases.
type Manager interface {
	// TryAcquire claims the job for instanceID. An expired holder is first
	// transitioned to "expired" (takeover), then acquisition proceeds.
	// Returns ErrConflict while a valid lease is held elsewhere.
	TryAcquire(ctx context.Context, jobID, executionID uuid.UUID, instanceID string, lease time.Duration) (*Token, error)

	// Renew extends the lease from now. Returns ErrLeaseLost when the lease
	// already expired or another instance took the job over.
	Renew(ctx context.Context, token *Token, lease time.Duration) error

	// Release marks the lock released. The bool reports whether this call
	// performed the transition; false means the lease had already expired or
	// been reclaimed, which the caller logs but does not treat as an error.
	Release(ctx context.Context, token *Token) (bool, error)

	// ExpireStale transitions every acquired lock whose lease has passed to
	// "expired". Housekeeping for the reaper; acquisition does not depend on
	// it having run.
	ExpireStale(ctx context.Context) (int64, error)

	Stats(ctx context.Context) (Stats, error)
}
