package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalManager keeps leases in process memory. It exists for single-instance
// deployments running with distributed locking disabled; it cannot arbitrate
// between independent processes and is unsafe with more than one instance.
type LocalManager struct {
	mu       sync.Mutex
	held     map[uuid.UUID]*Token // job_id -> current holder
	released int64
	expired  int64

	// now is swappable for tests.
	now func() time.Time
}

func NewLocalManager() *LocalManager {
	return &LocalManager{
		held: make(map[uuid.UUID]*Token),
		now:  time.Now,
	}
}

func (m *LocalManager) TryAcquire(
	_ context.Context,
	jobID, executionID uuid.UUID,
	instanceID string,
	lease time.Duration,
) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur, ok := m.held[jobID]; ok {
		if cur.LeaseExpiresAt.After(now) {
			return nil, ErrConflict
		}
		// Lease has passed: reclaim, then acquire.
		delete(m.held, jobID)
		m.expired++
	}

	token := &Token{
		LockID:         uuid.New(),
		JobID:          jobID,
		ExecutionID:    executionID,
		InstanceID:     instanceID,
		LeaseExpiresAt: now.Add(lease),
	}
	m.held[jobID] = token
	return token, nil
}

func (m *LocalManager) Renew(_ context.Context, token *Token, lease time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.held[token.JobID]
	if !ok || cur.LockID != token.LockID || !cur.LeaseExpiresAt.After(m.now()) {
		return ErrLeaseLost
	}
	cur.LeaseExpiresAt = m.now().Add(lease)
	token.LeaseExpiresAt = cur.LeaseExpiresAt
	return nil
}

func (m *LocalManager) Release(_ context.Context, token *Token) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.held[token.JobID]
	if !ok || cur.LockID != token.LockID {
		return false, nil
	}
	delete(m.held, token.JobID)
	m.released++
	return true, nil
}

func (m *LocalManager) ExpireStale(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for jobID, cur := range m.held {
		if !cur.LeaseExpiresAt.After(now) {
			delete(m.held, jobID)
			m.expired++
			n++
		}
	}
	return n, nil
}

func (m *LocalManager) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A lease that has passed no longer counts as acquired, even before a
	// reclaim or sweep has removed it.
	now := m.now()
	stats := Stats{Released: m.released, Expired: m.expired}
	for _, cur := range m.held {
		if cur.LeaseExpiresAt.After(now) {
			stats.Acquired++
		} else {
			stats.Expired++
		}
	}
	return stats, nil
}

var _ Manager = (*LocalManager)(nil)
