package boundary

import (
	"context"
	"time"

	"github.com/itskum47/swarmrouter/internal/observability"
	"github.com/itskum47/swarmrouter/internal/scheduler"
)

// PollGauges periodically samples the scheduler's telemetry getters and
// republishes them as Prometheus gauges, until ctx is cancelled. This is the
// only place anything reads scheduler internals for metrics purposes — the
// core itself never touches the observability package.
func PollGauges(ctx context.Context, sched *scheduler.Scheduler, replicaCount func() int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.PendingRequests.Set(float64(sched.PendingRequestCount()))
			observability.SchedulingTasks.Set(float64(sched.CurrentSchedulingTasks()))
			if replicaCount != nil {
				observability.ActiveReplicas.Set(float64(replicaCount()))
			}
		}
	}
}
