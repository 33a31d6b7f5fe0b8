// Package healthmon is a minimal external health monitor: the collaborator
// spec.md §1 places out of scope ("health monitoring that produces the
// replica set"), included here only so the demo binary has something driving
// Scheduler.UpdateReplicas. Production deployments would swap this for a
// real service-discovery or heartbeat subsystem.
package healthmon

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/itskum47/swarmrouter/internal/scheduler"
)

// Registrar is implemented by the scheduler: the only interface the monitor
// drives.
type Registrar interface {
	UpdateReplicas(replicas []scheduler.ReplicaHandle)
}

// Monitor tracks replica heartbeats and periodically republishes the set of
// replicas seen within threshold to a Registrar.
type Monitor struct {
	mu         sync.Mutex
	lastSeen   map[string]time.Time
	handles    map[string]scheduler.ReplicaHandle
	interval   time.Duration
	threshold  time.Duration
	registrar  Registrar
}

// NewMonitor builds a Monitor publishing liveness every interval, evicting
// any replica whose last heartbeat is older than threshold.
func NewMonitor(registrar Registrar, interval, threshold time.Duration) *Monitor {
	return &Monitor{
		lastSeen:  make(map[string]time.Time),
		handles:   make(map[string]scheduler.ReplicaHandle),
		interval:  interval,
		threshold: threshold,
		registrar: registrar,
	}
}

// Heartbeat registers (or refreshes) a replica as live.
func (m *Monitor) Heartbeat(r scheduler.ReplicaHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles[r.ReplicaID()] = r
	m.lastSeen[r.ReplicaID()] = time.Now()
}

// Forget immediately removes a replica (e.g. on graceful shutdown
// notification) without waiting for the threshold to elapse.
func (m *Monitor) Forget(replicaID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, replicaID)
	delete(m.lastSeen, replicaID)
}

// Start runs the liveness loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("[HEALTHMON] starting liveness monitor (interval=%v threshold=%v)", m.interval, m.threshold)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publish()
		}
	}
}

func (m *Monitor) publish() {
	m.mu.Lock()
	now := time.Now()
	active := make([]scheduler.ReplicaHandle, 0, len(m.handles))
	for id, h := range m.handles {
		if now.Sub(m.lastSeen[id]) > m.threshold {
			log.Printf("[HEALTHMON] replica %s heartbeat expired, removing from active set", id)
			delete(m.handles, id)
			delete(m.lastSeen, id)
			continue
		}
		active = append(active, h)
	}
	m.mu.Unlock()

	m.registrar.UpdateReplicas(active)
}
