package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

// fakeReplica is a ReplicaHandle test double whose queue length and error
// behavior can be scripted per test.
type fakeReplica struct {
	id       string
	nodeID   string
	az       string
	models   map[string]struct{}
	maxConc  int

	mu        sync.Mutex
	queue     int
	err       error
	delay     time.Duration
	probes    int
	deadlines []time.Duration
}

func newFakeReplica(id string, maxConc int, models ...string) *fakeReplica {
	m := make(map[string]struct{}, len(models))
	for _, mid := range models {
		m[mid] = struct{}{}
	}
	return &fakeReplica{id: id, maxConc: maxConc, models: m}
}

func (r *fakeReplica) ReplicaID() string                  { return r.id }
func (r *fakeReplica) ActorID() string                    { return "actor-" + r.id }
func (r *fakeReplica) NodeID() string                     { return r.nodeID }
func (r *fakeReplica) AvailabilityZone() string           { return r.az }
func (r *fakeReplica) ModelIDs() map[string]struct{}      { return r.models }
func (r *fakeReplica) MaxConcurrentRequests() int         { return r.maxConc }

func (r *fakeReplica) ProbeQueueLength(ctx context.Context, deadline time.Duration) (int, error) {
	r.mu.Lock()
	r.probes++
	r.deadlines = append(r.deadlines, deadline)
	q, err, delay := r.queue, r.err, r.delay
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return q, err
}

func (r *fakeReplica) setQueue(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = n
}

func (r *fakeReplica) probeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.probes
}

func (r *fakeReplica) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeReplica) setDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

func (r *fakeReplica) seenDeadlines() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.deadlines))
	copy(out, r.deadlines)
	return out
}

var _ ReplicaHandle = (*fakeReplica)(nil)

func TestBuildCandidatePoolPrefersModelIDAffinity(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	s := NewScheduler(Config{ModelIDMatchTimeout: time.Second}, fc, nil)

	withModel := newFakeReplica("r1", 10, "llama")
	without := newFakeReplica("r2", 10)
	active := []ReplicaHandle{withModel, without}

	req := NewPendingRequest("llama", fc.Now())
	pool, tier := s.buildCandidatePool(req, active, tierModelID)

	if tier != tierModelID {
		t.Fatalf("expected tierModelID, got %v", tier)
	}
	if len(pool) != 1 || pool[0].ReplicaID() != "r1" {
		t.Fatalf("expected pool to contain only r1, got %v", pool)
	}
}

func TestBuildCandidatePoolSkipsModelTierWhenNoReplicaCarriesIt(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	s := NewScheduler(Config{ModelIDMatchTimeout: time.Second}, fc, nil)

	active := []ReplicaHandle{newFakeReplica("r1", 10), newFakeReplica("r2", 10)}
	req := NewPendingRequest("unknown-model", fc.Now())

	pool, tier := s.buildCandidatePool(req, active, tierModelID)
	if tier != tierAll {
		t.Fatalf("expected fall-through to tierAll, got %v", tier)
	}
	if len(pool) != 2 {
		t.Fatalf("expected both replicas in pool, got %d", len(pool))
	}
}

func TestBuildCandidatePoolBroadensAfterGraceWindow(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	s := NewScheduler(Config{ModelIDMatchTimeout: time.Second}, fc, nil)

	withModel := newFakeReplica("r1", 10, "llama")
	lightlyLoaded := newFakeReplica("r2", 10)
	active := []ReplicaHandle{withModel, lightlyLoaded}

	req := NewPendingRequest("llama", fc.Now())
	fc.Step(2 * time.Second)

	pool, tier := s.buildCandidatePool(req, active, tierModelID)
	if tier != tierModelID {
		t.Fatalf("expected reported tier to remain tierModelID, got %v", tier)
	}
	if len(pool) != 2 {
		t.Fatalf("expected pool broadened to include fewest-loaded replica, got %d entries", len(pool))
	}
}

func TestSampleTwoReturnsSingleForSingletonPool(t *testing.T) {
	only := newFakeReplica("solo", 10)
	a, b := sampleTwo([]ReplicaHandle{only})
	if a != only || b != nil {
		t.Fatalf("expected (solo, nil), got (%v, %v)", a, b)
	}
}

func TestSampleTwoReturnsDistinctReplicas(t *testing.T) {
	pool := []ReplicaHandle{
		newFakeReplica("a", 10),
		newFakeReplica("b", 10),
		newFakeReplica("c", 10),
	}
	for i := 0; i < 20; i++ {
		a, b := sampleTwo(pool)
		if a == nil || b == nil {
			t.Fatal("expected two non-nil replicas from a 3-element pool")
		}
		if a.ReplicaID() == b.ReplicaID() {
			t.Fatalf("expected distinct replicas, got %s twice", a.ReplicaID())
		}
	}
}
