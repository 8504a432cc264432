package dispatch

import (
	"math/rand"
	"time"
)

// computeBackoff returns an exponentially increasing delay with ±25% jitter.
// Base = 2s, max = 5m, exponent capped at 20 to prevent integer overflow.
func computeBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	maxDelay := 5 * time.Minute
	shift := attempt
	if shift > 20 {
		shift = 20
	}
	d := base * time.Duration(1<<shift)
	if d > maxDelay {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d/2))) - d/4
	return d + jitter
}
