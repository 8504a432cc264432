package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/glimpser-rs-sub000/internal/db"
	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
	"github.com/harperreed/glimpser-rs-sub000/internal/migrate"
)

// testPool connects to the database named by TEST_DATABASE_URL and applies
// migrations. Tests are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migrate.Run(ctx, pool, logger))
	return pool
}

// insertJob creates a fixture definition with the given enabled state,
// priority, and due offset relative to now.
func insertJob(t *testing.T, jobs *Jobs, enabled bool, priority int, dueOffset time.Duration) uuid.UUID {
	t.Helper()
	due := time.Now().Add(dueOffset)
	job := &domain.ScheduledJob{
		ID:        uuid.New(),
		Name:      "due-test-" + uuid.NewString()[:8],
		Kind:      domain.KindCleanup,
		Schedule:  "0 * * * *",
		Params:    []byte(`{}`),
		Enabled:   enabled,
		Priority:  priority,
		Timeout:   time.Minute,
		NextDueAt: &due,
	}
	require.NoError(t, jobs.Create(context.Background(), job))
	t.Cleanup(func() {
		_ = jobs.Delete(context.Background(), job.ID)
	})
	return job.ID
}

// indexOf returns the position of id among the candidates, or -1.
func indexOf(candidates []domain.ScheduledJob, id uuid.UUID) int {
	for i := range candidates {
		if candidates[i].ID == id {
			return i
		}
	}
	return -1
}

func TestDueCandidatesFilters(t *testing.T) {
	pool := testPool(t)
	jobs := NewJobs(pool)
	ctx := context.Background()

	due := insertJob(t, jobs, true, 0, -time.Minute)
	disabled := insertJob(t, jobs, false, 0, -time.Minute)
	future := insertJob(t, jobs, true, 0, time.Hour)
	locked := insertJob(t, jobs, true, 0, -time.Minute)

	// An acquired lock removes the job from consideration.
	_, err := pool.Exec(ctx, `
		INSERT INTO job_locks
			(id, job_id, execution_id, instance_id, lease_expires_at, status)
		VALUES ($1, $2, $3, 'tester', NOW() + interval '1 minute', 'acquired')`,
		uuid.New(), locked, uuid.New())
	require.NoError(t, err)

	candidates, err := jobs.DueCandidates(ctx, time.Now(), 1000)
	require.NoError(t, err)

	assert.NotEqual(t, -1, indexOf(candidates, due), "due enabled job must be selected")
	assert.Equal(t, -1, indexOf(candidates, disabled), "disabled job must never be selected")
	assert.Equal(t, -1, indexOf(candidates, future), "job not yet due must not be selected")
	assert.Equal(t, -1, indexOf(candidates, locked), "job under an acquired lock must not be selected")
}

func TestDueCandidatesOrdering(t *testing.T) {
	pool := testPool(t)
	jobs := NewJobs(pool)
	ctx := context.Background()

	lowOld := insertJob(t, jobs, true, 5, -10*time.Minute)
	lowNew := insertJob(t, jobs, true, 5, -5*time.Minute)
	high := insertJob(t, jobs, true, 9, -time.Minute)

	candidates, err := jobs.DueCandidates(ctx, time.Now(), 1000)
	require.NoError(t, err)

	iHigh := indexOf(candidates, high)
	iLowOld := indexOf(candidates, lowOld)
	iLowNew := indexOf(candidates, lowNew)
	require.NotEqual(t, -1, iHigh)
	require.NotEqual(t, -1, iLowOld)
	require.NotEqual(t, -1, iLowNew)

	// Priority descending first, then earlier due time within a band.
	assert.Less(t, iHigh, iLowOld, "higher priority dispatches before an older low-priority job")
	assert.Less(t, iLowOld, iLowNew, "earlier due time wins within the same priority")
}
