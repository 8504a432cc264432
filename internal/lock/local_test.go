package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMutualExclusion(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()
	jobID := uuid.New()

	// N concurrent attempts for the same job: exactly one acquisition.
	const n = 16
	var wg sync.WaitGroup
	acquired := make(chan *Token, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.TryAcquire(ctx, jobID, uuid.New(), "host:1", time.Minute)
			if err == nil {
				acquired <- token
			} else {
				assert.ErrorIs(t, err, ErrConflict)
			}
		}()
	}
	wg.Wait()
	close(acquired)

	var winners int
	for range acquired {
		winners++
	}
	assert.Equal(t, 1, winners)
}

func TestLocalTakeoverAfterExpiry(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()
	jobID := uuid.New()

	now := time.Now()
	m.now = func() time.Time { return now }

	_, err := m.TryAcquire(ctx, jobID, uuid.New(), "instance-a", 360*time.Second)
	require.NoError(t, err)

	// Lease still valid at T+300: conflict.
	m.now = func() time.Time { return now.Add(300 * time.Second) }
	_, err = m.TryAcquire(ctx, jobID, uuid.New(), "instance-b", 360*time.Second)
	assert.ErrorIs(t, err, ErrConflict)

	// Lease passed at T+361: takeover succeeds.
	m.now = func() time.Time { return now.Add(361 * time.Second) }
	token, err := m.TryAcquire(ctx, jobID, uuid.New(), "instance-b", 360*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "instance-b", token.InstanceID)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Acquired)
	assert.Equal(t, int64(1), stats.Expired)
}

func TestLocalStatsExcludeLapsedLeases(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	_, err := m.TryAcquire(ctx, uuid.New(), uuid.New(), "host:1", time.Minute)
	require.NoError(t, err)

	// Past the lease, before any reclaim or sweep has touched the map, the
	// lease no longer counts as acquired.
	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Acquired)
	assert.Equal(t, int64(1), stats.Expired)
}

func TestLocalRenewFencing(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()
	jobID := uuid.New()

	now := time.Now()
	m.now = func() time.Time { return now }

	token, err := m.TryAcquire(ctx, jobID, uuid.New(), "host:1", time.Minute)
	require.NoError(t, err)

	// Renewal while valid extends from now.
	m.now = func() time.Time { return now.Add(30 * time.Second) }
	require.NoError(t, m.Renew(ctx, token, time.Minute))
	assert.Equal(t, now.Add(90*time.Second), token.LeaseExpiresAt)

	// Renewal after expiry fails.
	m.now = func() time.Time { return now.Add(5 * time.Minute) }
	assert.ErrorIs(t, m.Renew(ctx, token, time.Minute), ErrLeaseLost)
}

func TestLocalReleaseIsFenced(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()
	jobID := uuid.New()

	now := time.Now()
	m.now = func() time.Time { return now }

	stale, err := m.TryAcquire(ctx, jobID, uuid.New(), "instance-a", time.Minute)
	require.NoError(t, err)

	// Takeover invalidates the old token.
	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	fresh, err := m.TryAcquire(ctx, jobID, uuid.New(), "instance-b", time.Minute)
	require.NoError(t, err)

	done, err := m.Release(ctx, stale)
	require.NoError(t, err)
	assert.False(t, done, "stale token must not release the new holder's lock")

	done, err = m.Release(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestLocalExpireStale(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	_, err := m.TryAcquire(ctx, uuid.New(), uuid.New(), "host:1", time.Minute)
	require.NoError(t, err)
	_, err = m.TryAcquire(ctx, uuid.New(), uuid.New(), "host:1", time.Hour)
	require.NoError(t, err)

	// Only the first lease has passed.
	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	n, err := m.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Acquired)
	assert.Equal(t, int64(1), stats.Expired)
}
