// Package scheduler implements the Power-of-Two-Choices replica scheduler:
// given a set of interchangeable worker replicas and a stream of pending
// requests, it assigns each request to a replica chosen by sampling two
// candidates and probing (or reading a cached) queue length, while honoring
// locality and model-id affinity and preserving strict FIFO order across
// retries.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scheduler is the PowerOfTwoChoices core (spec.md §2, §4).
type Scheduler struct {
	mu       sync.Mutex // protects replicas and runningTasks
	replicas map[string]ReplicaHandle

	cache QueueLengthCache
	queue *FIFOQueue
	clock Clock
	cfg   Config

	runningTasks int

	replicasChanged *broadcaster

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler builds a Scheduler. If cache is nil, an in-memory
// QueueLengthCache is created using cfg.QueueLenCacheStaleness.
func NewScheduler(cfg Config, clk Clock, cache QueueLengthCache) *Scheduler {
	cfg.clamp()
	if clk == nil {
		clk = RealClock
	}
	if cache == nil {
		cache = NewInMemoryQueueLengthCache(cfg.QueueLenCacheStaleness, clk)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		replicas:        make(map[string]ReplicaHandle),
		cache:           cache,
		queue:           NewFIFOQueue(),
		clock:           clk,
		cfg:             cfg,
		replicasChanged: newBroadcaster(),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Close stops all scheduling tasks. The scheduler must not be used after
// Close returns.
func (s *Scheduler) Close() {
	s.cancel()
}

// UpdateReplicas replaces the active replica set (spec.md §4.1). It prunes
// the queue-length cache to the new set and wakes any scheduling task
// waiting on the "replicas changed" signal. It never itself fulfills pending
// requests.
func (s *Scheduler) UpdateReplicas(newSet []ReplicaHandle) {
	s.mu.Lock()
	replicas := make(map[string]ReplicaHandle, len(newSet))
	active := make(map[string]struct{}, len(newSet))
	for _, r := range newSet {
		replicas[r.ReplicaID()] = r
		active[r.ReplicaID()] = struct{}{}
	}
	s.replicas = replicas
	s.mu.Unlock()

	s.cache.RemoveInactive(active)
	s.replicasChanged.broadcast()
	s.ensureSchedulingTasks()
}

// ChooseReplicaForRequest enqueues req and blocks (honoring ctx) until a
// replica is assigned or the caller cancels. If isRetry is true, req retains
// its original CreatedAt so FIFO order across retries is preserved;
// otherwise CreatedAt is stamped with the scheduler's clock (spec.md §4.1).
func (s *Scheduler) ChooseReplicaForRequest(ctx context.Context, req *PendingRequest, isRetry bool) (ReplicaHandle, error) {
	if !isRetry || req.CreatedAt.IsZero() {
		req.CreatedAt = s.clock.Now()
	}
	if req.resultCh == nil {
		req.resultCh = make(chan assignmentResult, 1)
	}

	s.queue.Push(req)
	s.ensureSchedulingTasks()

	select {
	case res := <-req.resultCh:
		return res.replica, res.err
	case <-ctx.Done():
		s.queue.Cancel(req)
		return nil, ErrCancelled
	}
}

// CurrentSchedulingTasks reports the number of scheduling tasks running now.
func (s *Scheduler) CurrentSchedulingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningTasks
}

// PendingRequestCount reports the number of requests awaiting assignment.
func (s *Scheduler) PendingRequestCount() int {
	return s.queue.Len()
}

// ActiveReplicaCount reports the size of the current active replica set.
func (s *Scheduler) ActiveReplicaCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replicas)
}

// MaxSchedulingTasks reports min(2*|replicas|, hardCap) for the current
// replica set (spec.md §4.4).
func (s *Scheduler) MaxSchedulingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSchedulingTasksLocked()
}

func (s *Scheduler) maxSchedulingTasksLocked() int {
	max := 2 * len(s.replicas)
	if max > s.cfg.MaxSchedulingTasksHardCap {
		max = s.cfg.MaxSchedulingTasksHardCap
	}
	return max
}

// ensureSchedulingTasks spawns new scheduling tasks up to the concurrency
// cap whenever there is pending work and at least one replica (spec.md §3
// invariant: "> 0 whenever there is at least one pending request and at
// least one replica").
func (s *Scheduler) ensureSchedulingTasks() {
	s.mu.Lock()
	nReplicas := len(s.replicas)
	pending := s.queue.Len()
	toSpawn := 0
	if nReplicas > 0 && pending > 0 {
		max := s.maxSchedulingTasksLocked()
		for s.runningTasks < max {
			s.runningTasks++
			toSpawn++
		}
	}
	s.mu.Unlock()

	for i := 0; i < toSpawn; i++ {
		go s.runSchedulingTask()
	}
}

func (s *Scheduler) decrementRunningTasks() {
	s.mu.Lock()
	s.runningTasks--
	s.mu.Unlock()
}

func (s *Scheduler) activeSnapshot() []ReplicaHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReplicaHandle, 0, len(s.replicas))
	for _, r := range s.replicas {
		out = append(out, r)
	}
	return out
}

func (s *Scheduler) isActive(replicaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.replicas[replicaID]
	return ok
}

// runSchedulingTask is the body of one background scheduling task: it
// repeatedly samples candidate pairs, probes (or reads cached) queue
// lengths, and on success assigns the current FIFO head to the winner
// (spec.md §4.4: task identity is decoupled from request identity). It
// self-terminates when the pending queue empties or no replicas exist
// (spec.md "Lifecycle").
//
// currentDeadline and currentTier are this task's own state (spec.md §4.5:
// "Each scheduling task maintains its own currentDeadline").
func (s *Scheduler) runSchedulingTask() {
	defer func() {
		s.decrementRunningTasks()
		// A sibling exiting may have left work unattended; re-check.
		s.ensureSchedulingTasks()
	}()

	currentDeadline := s.cfg.QueueLenResponseDeadlineInitial
	currentTier := tierModelID
	tierFailures := 0

	for {
		if s.ctx.Err() != nil {
			return
		}

		active := s.activeSnapshot()
		if len(active) == 0 {
			return
		}

		peeked := s.queue.Peek()
		if peeked == nil {
			return
		}

		pool, _ := s.buildCandidatePool(peeked, active, currentTier)
		if len(pool) == 0 {
			pool = active
		}

		winner, timedOut := s.attemptPair(s.ctx, pool, currentDeadline)
		if winner != nil {
			head := s.queue.PopHead()
			if head == nil {
				// Queue drained by a sibling task between peek and pop;
				// nothing to hand the replica to this round.
				continue
			}
			head.resultCh <- assignmentResult{replica: winner}
			currentDeadline = s.cfg.QueueLenResponseDeadlineInitial
			currentTier = tierModelID
			tierFailures = 0
			continue
		}

		if timedOut {
			currentDeadline = growDeadline(currentDeadline, s.cfg.QueueLenResponseDeadlineMax)
		}
		tierFailures++
		if tierFailures >= s.cfg.TierDemotionAttempts && currentTier < tierAll {
			currentTier++
			tierFailures = 0
		}

		if !s.sleepInterruptible(currentDeadline) {
			return
		}
	}
}

func growDeadline(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}

// sleepInterruptible pauses for d, waking early if the scheduler is closed
// or the replica set changes (so a task backed off against a now-removed
// replica retries immediately). Returns false if the scheduler was closed.
func (s *Scheduler) sleepInterruptible(d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
		return true
	case <-s.replicasChanged.wait():
		return true
	case <-s.ctx.Done():
		return false
	}
}

// attemptPair samples two candidates from pool, resolves their queue
// lengths against the given probe deadline, and returns the acceptable one
// with the lower length (ties broken arbitrarily). It also fires an
// opportunistic background probe for the unselected candidate when useful
// (spec.md §4.2). timedOut reports whether any probe in this attempt hit its
// deadline, which drives backoff growth (spec.md §4.5).
func (s *Scheduler) attemptPair(ctx context.Context, pool []ReplicaHandle, deadline time.Duration) (winner ReplicaHandle, timedOut bool) {
	a, b := sampleTwo(pool)

	type outcome struct {
		replica    ReplicaHandle
		length     int
		acceptable bool
		timedOut   bool
	}

	resolve := func(r ReplicaHandle) outcome {
		length, err := s.queueLength(ctx, r, deadline)
		if err != nil {
			return outcome{replica: r, timedOut: errors.Is(err, ErrProbeTimeout)}
		}
		return outcome{replica: r, length: length, acceptable: length < r.MaxConcurrentRequests()}
	}

	// Both candidates' queue lengths are needed before a choice can be made,
	// so probe them concurrently with a bounded group (at most 2 in-flight
	// probes per attempt, per spec.md §5 "probes are scoped to at most one
	// per candidate per attempt").
	var oa, ob outcome
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(2)
	if a != nil {
		g.Go(func() error { oa = resolve(a); return nil })
	}
	if b != nil {
		g.Go(func() error { ob = resolve(b); return nil })
	}
	_ = g.Wait()

	var candidates []outcome
	if a != nil {
		candidates = append(candidates, oa)
	}
	if b != nil {
		candidates = append(candidates, ob)
	}

	var best *outcome
	for i := range candidates {
		c := &candidates[i]
		if !c.acceptable {
			if c.timedOut {
				timedOut = true
			}
			continue
		}
		if best == nil || c.length < best.length {
			best = c
		}
	}

	if best != nil {
		winner = best.replica
		// Opportunistically keep the loser's cache entry warm in the
		// background without blocking this attempt (spec.md §4.2).
		for i := range candidates {
			c := &candidates[i]
			if c.replica != winner {
				s.maybeOpportunisticProbe(c.replica)
			}
		}
	}
	return winner, timedOut
}

// queueLength resolves r's queue length per spec.md §4.2: a fresh,
// sub-capacity cache entry short-circuits the probe; anything else (absent,
// stale, or at/above capacity) is re-probed against the given deadline.
func (s *Scheduler) queueLength(ctx context.Context, r ReplicaHandle, deadline time.Duration) (int, error) {
	if s.cfg.UseQueueLenCache {
		if v, ok := s.cache.Get(r.ReplicaID()); ok && v < r.MaxConcurrentRequests() {
			if !s.isActive(r.ReplicaID()) {
				// Removed from the active set since this entry was cached;
				// never hand out a cache hit for a replica no longer live
				// (spec.md §3, §4.5).
				return 0, ErrProbeTransport
			}
			return v, nil
		}
	}

	pctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	v, perr := r.ProbeQueueLength(pctx, deadline)
	if perr != nil {
		if pctx.Err() == context.DeadlineExceeded {
			return 0, ErrProbeTimeout
		}
		// Transport error: evict any cached value, rely on the external
		// health monitor to eventually prune this replica (spec.md §7).
		s.cache.RemoveInactive(s.activeIDSetExcluding(r.ReplicaID()))
		return 0, ErrProbeTransport
	}

	if !s.isActive(r.ReplicaID()) {
		// Replica was removed while the probe was in flight; discard the
		// response rather than risk handing it to a caller (spec.md §4.5).
		return 0, ErrProbeTransport
	}

	s.cache.Update(r.ReplicaID(), v)
	return v, nil
}

func (s *Scheduler) activeIDSetExcluding(id string) map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.replicas))
	for k := range s.replicas {
		if k != id {
			out[k] = struct{}{}
		}
	}
	return out
}

// maybeOpportunisticProbe refreshes a candidate's cache entry in the
// background if it is missing or stale, without blocking the caller
// (spec.md §4.2: "A background opportunistic probe is issued to any
// candidate that was in the pool but not selected").
func (s *Scheduler) maybeOpportunisticProbe(r ReplicaHandle) {
	if !s.cfg.UseQueueLenCache {
		return
	}
	if _, ok := s.cache.Get(r.ReplicaID()); ok {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(s.ctx, s.cfg.QueueLenResponseDeadlineInitial)
		defer cancel()
		v, err := r.ProbeQueueLength(pctx, s.cfg.QueueLenResponseDeadlineInitial)
		if err != nil {
			return
		}
		if !s.isActive(r.ReplicaID()) {
			return
		}
		s.cache.Update(r.ReplicaID(), v)
	}()
}
