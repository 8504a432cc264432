package dispatch

import (
	"context"
	"time"
)

// RunHeartbeat refreshes this instance's liveness row every 10 seconds so
// operators can tell live instances from crashed ones. Purely informational:
// lock recovery runs on lease expiry, never on instance status. Run in a
// goroutine alongside Start.
func (d *Dispatcher) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.instances.Heartbeat(ctx, d.instanceID); err != nil {
				d.logger.Error("heartbeat failed", "err", err)
			}
		}
	}
}
