package admin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
	"github.com/harperreed/glimpser-rs-sub000/internal/executor"
)

const testLease = 6 * time.Minute

func testRegistry() *executor.Registry {
	r := executor.NewRegistry()
	r.Register(domain.KindCapture, executor.Func(
		func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			return nil, nil
		}))
	return r
}

func TestBuildJobDefaults(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 30, 0, time.UTC)
	def := JobDefinition{
		Name:     "homepage",
		Kind:     "capture",
		Schedule: "*/5 * * * *",
	}

	job, err := buildJob(def, testRegistry(), testLease, now)
	require.NoError(t, err)

	assert.Equal(t, domain.KindCapture, job.Kind)
	assert.True(t, job.Enabled)
	assert.Equal(t, 5*time.Minute, job.Timeout)
	assert.JSONEq(t, `{}`, string(job.Params))
	require.NotNil(t, job.NextDueAt)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC), *job.NextDueAt)
}

func TestBuildJobHonorsExplicitFields(t *testing.T) {
	enabled := false
	def := JobDefinition{
		Name:           "nightly-cleanup",
		Kind:           "capture",
		Schedule:       "0 3 * * *",
		Params:         json.RawMessage(`{"older_than_days":30}`),
		Enabled:        &enabled,
		MaxRetries:     3,
		TimeoutSeconds: 120,
		Priority:       7,
	}

	job, err := buildJob(def, testRegistry(), testLease, time.Now())
	require.NoError(t, err)
	assert.False(t, job.Enabled)
	assert.Equal(t, 3, job.MaxRetries)
	assert.Equal(t, 2*time.Minute, job.Timeout)
	assert.Equal(t, 7, job.Priority)
}

func TestBuildJobRejectsConfigurationErrors(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		def  JobDefinition
	}{
		{"missing name", JobDefinition{Kind: "capture", Schedule: "* * * * *"}},
		{"missing kind", JobDefinition{Name: "j", Schedule: "* * * * *"}},
		{"unregistered kind", JobDefinition{Name: "j", Kind: "snapshot", Schedule: "* * * * *"}},
		{"malformed schedule", JobDefinition{Name: "j", Kind: "capture", Schedule: "banana"}},
		{"negative retries", JobDefinition{Name: "j", Kind: "capture", Schedule: "* * * * *", MaxRetries: -1}},
		{"negative timeout", JobDefinition{Name: "j", Kind: "capture", Schedule: "* * * * *", TimeoutSeconds: -5}},
		{"timeout reaches the lock lease", JobDefinition{Name: "j", Kind: "capture", Schedule: "* * * * *", TimeoutSeconds: int(testLease.Seconds())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildJob(tt.def, testRegistry(), testLease, now)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestApplyUpdateKeepsPauseStateWhenEnabledUnset(t *testing.T) {
	existing := &domain.ScheduledJob{Enabled: false}

	def := JobDefinition{Name: "j", Kind: "capture", Schedule: "* * * * *"}
	job, err := buildJob(def, testRegistry(), testLease, time.Now())
	require.NoError(t, err)
	require.True(t, job.Enabled, "buildJob defaults to enabled")

	applyUpdate(existing, job, def)
	assert.False(t, job.Enabled, "an update that omits enabled must not resume a paused job")

	// An explicit enabled flag still wins.
	enabled := true
	def.Enabled = &enabled
	job, err = buildJob(def, testRegistry(), testLease, time.Now())
	require.NoError(t, err)
	applyUpdate(existing, job, def)
	assert.True(t, job.Enabled)
}
