package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDueEveryMinute(t *testing.T) {
	after := time.Date(2025, 3, 10, 12, 30, 15, 0, time.UTC)

	next, ok := NextDue("* * * * *", after)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 31, 0, 0, time.UTC), next)
}

func TestNextDueIsStrictlyAfterReference(t *testing.T) {
	// Reference sits exactly on a boundary; the next occurrence must not be
	// the reference itself.
	after := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

	next, ok := NextDue("30 12 * * *", after)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 11, 12, 30, 0, 0, time.UTC), next)
}

func TestNextDueDeterministic(t *testing.T) {
	after := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	a, ok := NextDue("15 3 * * 1", after)
	require.True(t, ok)
	b, ok := NextDue("15 3 * * 1", after)
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestNextDueMalformed(t *testing.T) {
	tests := []string{
		"",
		"not a cron",
		"61 * * * *",
		"* * * * * * *",
	}
	for _, expr := range tests {
		_, ok := NextDue(expr, time.Now())
		assert.False(t, ok, "expected %q to be rejected", expr)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.NoError(t, Validate("@hourly"))
	assert.Error(t, Validate("bogus"))
	assert.Error(t, Validate("99 * * * *"))
}
