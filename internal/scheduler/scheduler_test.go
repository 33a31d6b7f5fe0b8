package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChooseReplicaForRequestAssignsWhenAcceptable(t *testing.T) {
	sched := NewScheduler(Config{}, nil, nil)
	defer sched.Close()

	r := newFakeReplica("r1", 10)
	r.setQueue(0)
	sched.UpdateReplicas([]ReplicaHandle{r})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := NewPendingRequest("", time.Time{})
	got, err := sched.ChooseReplicaForRequest(ctx, req, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ReplicaID() != "r1" {
		t.Fatalf("expected r1, got %s", got.ReplicaID())
	}
}

func TestChooseReplicaForRequestPicksLowerQueueLength(t *testing.T) {
	sched := NewScheduler(Config{}, nil, nil)
	defer sched.Close()

	low := newFakeReplica("low", 100)
	low.setQueue(1)
	high := newFakeReplica("high", 100)
	high.setQueue(50)
	sched.UpdateReplicas([]ReplicaHandle{low, high})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := NewPendingRequest("", time.Time{})
	got, err := sched.ChooseReplicaForRequest(ctx, req, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ReplicaID() != "low" {
		t.Fatalf("expected the lower-queue replica to win, got %s", got.ReplicaID())
	}
}

func TestChooseReplicaForRequestHonorsContextCancellation(t *testing.T) {
	sched := NewScheduler(Config{}, nil, nil)
	defer sched.Close()
	// No replicas registered: the request can never be assigned.

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := NewPendingRequest("", time.Time{})
	_, err := sched.ChooseReplicaForRequest(ctx, req, false)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if sched.PendingRequestCount() != 0 {
		t.Fatalf("expected cancelled request removed from queue, got %d pending", sched.PendingRequestCount())
	}
}

func TestMaxSchedulingTasksCappedByReplicaCountAndHardCap(t *testing.T) {
	sched := NewScheduler(Config{MaxSchedulingTasksHardCap: 3}, nil, nil)
	defer sched.Close()

	replicas := make([]ReplicaHandle, 0, 5)
	for i := 0; i < 5; i++ {
		replicas = append(replicas, newFakeReplica(string(rune('a'+i)), 10))
	}
	sched.UpdateReplicas(replicas)

	if got := sched.MaxSchedulingTasks(); got != 3 {
		t.Fatalf("expected hard cap of 3 with 5 replicas, got %d", got)
	}

	sched2 := NewScheduler(Config{MaxSchedulingTasksHardCap: 50}, nil, nil)
	defer sched2.Close()
	sched2.UpdateReplicas(replicas[:2])
	if got := sched2.MaxSchedulingTasks(); got != 4 {
		t.Fatalf("expected 2*|replicas|=4 under the hard cap, got %d", got)
	}
}

func TestDeadlineGrowsOnRepeatedTimeoutAndCapsAtMax(t *testing.T) {
	cfg := Config{
		QueueLenResponseDeadlineInitial: 5 * time.Millisecond,
		QueueLenResponseDeadlineMax:     40 * time.Millisecond,
		TierDemotionAttempts:            1000, // stay in the same tier for this test
		UseQueueLenCache:                false,
	}
	sched := NewScheduler(cfg, nil, nil)
	defer sched.Close()

	slow := newFakeReplica("slow", 10)
	slow.setDelay(200 * time.Millisecond) // always exceeds any deadline below
	sched.UpdateReplicas([]ReplicaHandle{slow})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	req := NewPendingRequest("", time.Time{})
	_, err := sched.ChooseReplicaForRequest(ctx, req, false)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected the request to still be waiting when ctx expired, got %v", err)
	}

	deadlines := slow.seenDeadlines()
	if len(deadlines) < 2 {
		t.Fatalf("expected at least two probe attempts, got %d", len(deadlines))
	}
	for i := 1; i < len(deadlines); i++ {
		if deadlines[i] < deadlines[i-1] {
			t.Fatalf("expected non-decreasing deadlines, got %v", deadlines)
		}
	}
	if deadlines[len(deadlines)-1] > cfg.QueueLenResponseDeadlineMax {
		t.Fatalf("expected deadline capped at %v, got %v", cfg.QueueLenResponseDeadlineMax, deadlines[len(deadlines)-1])
	}
}

func TestCancellationNoSideEffectOnSiblingRequest(t *testing.T) {
	sched := NewScheduler(Config{}, nil, nil)
	defer sched.Close()

	r := newFakeReplica("r1", 100)
	r.setQueue(0)
	sched.UpdateReplicas([]ReplicaHandle{r})

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancelled := NewPendingRequest("", time.Time{})
	done := make(chan error, 1)
	go func() {
		_, err := sched.ChooseReplicaForRequest(cancelCtx, cancelled, false)
		done <- err
	}()
	cancel()
	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled for the cancelled request, got %v", err)
	}

	survivorCtx, surviorCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer surviorCancel()
	survivor := NewPendingRequest("", time.Time{})
	got, err := sched.ChooseReplicaForRequest(survivorCtx, survivor, false)
	if err != nil {
		t.Fatalf("expected the surviving request to be assigned, got error: %v", err)
	}
	if got.ReplicaID() != "r1" {
		t.Fatalf("expected r1, got %s", got.ReplicaID())
	}
}

func TestUpdateReplicasPrunesCacheForRemovedReplicas(t *testing.T) {
	sched := NewScheduler(Config{UseQueueLenCache: true}, nil, nil)
	defer sched.Close()

	r1 := newFakeReplica("r1", 10)
	r1.setQueue(0)
	sched.UpdateReplicas([]ReplicaHandle{r1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req := NewPendingRequest("", time.Time{})
	if _, err := sched.ChooseReplicaForRequest(ctx, req, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sched.cache.Get("r1"); !ok {
		t.Fatal("expected r1's queue length to be cached after assignment")
	}

	sched.UpdateReplicas(nil)
	if _, ok := sched.cache.Get("r1"); ok {
		t.Fatal("expected r1's cache entry pruned once it left the active set")
	}
}
