package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBackoffGrowsAndCaps(t *testing.T) {
	// Jitter is ±25%, so bound checks use the 75%–125% envelope.
	for attempt, base := range map[int]time.Duration{
		0: 2 * time.Second,
		1: 4 * time.Second,
		2: 8 * time.Second,
	} {
		d := computeBackoff(attempt)
		assert.GreaterOrEqual(t, d, base*3/4, "attempt %d", attempt)
		assert.LessOrEqual(t, d, base*5/4, "attempt %d", attempt)
	}

	// Large attempts cap at 5m (plus jitter) and must not overflow.
	for _, attempt := range []int{10, 20, 100, 1 << 30} {
		d := computeBackoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 5*time.Minute*5/4)
	}
}
