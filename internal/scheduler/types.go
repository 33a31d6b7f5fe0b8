package scheduler

import (
	"errors"
	"time"
)

// Sentinel errors of the scheduler. Only ErrCancelled crosses the scheduler
// boundary; the probe errors are internal classifications, and probe
// failures and misconfiguration are absorbed locally (spec.md §7).
var (
	// ErrCancelled is returned from ChooseReplicaForRequest when the caller's
	// context is cancelled before a replica was assigned.
	ErrCancelled = errors.New("scheduler: request cancelled")

	// ErrProbeTimeout is the internal classification for a probe that did not
	// answer within the current deadline budget.
	ErrProbeTimeout = errors.New("scheduler: probe timeout")

	// ErrProbeTransport is the internal classification for a probe that
	// failed because the replica was unreachable.
	ErrProbeTransport = errors.New("scheduler: probe transport error")
)

// Config holds the scheduler's tunables (spec.md §4.1). All fields are
// clamped to sane values at construction time; nothing here is fatal at
// runtime.
type Config struct {
	PreferLocalNode bool
	PreferLocalAZ   bool
	SelfNodeID      string
	SelfAZ          string

	UseQueueLenCache       bool
	QueueLenCacheStaleness time.Duration

	QueueLenResponseDeadlineInitial time.Duration
	QueueLenResponseDeadlineMax     time.Duration

	MaxSchedulingTasksHardCap int

	// ModelIDMatchTimeout is the grace window during which the scheduler
	// restricts the candidate pool to replicas carrying the request's model
	// id; after it, the pool also includes the replica(s) with the fewest
	// loaded models (spec.md §4.3 tier 1). Demotion to the locality tiers
	// follows TierDemotionAttempts failed attempts, whether or not the
	// window has elapsed.
	ModelIDMatchTimeout time.Duration

	// TierDemotionAttempts bounds how many failed attempts a task makes
	// within a candidate tier before it is demoted to the next broader tier
	// (spec.md §4.3 "tier demotion").
	TierDemotionAttempts int
}

// DefaultConfig returns production defaults, mirroring the teacher's
// DefaultSchedulerConfig idiom.
func DefaultConfig() Config {
	return Config{
		UseQueueLenCache:                 true,
		QueueLenCacheStaleness:           10 * time.Second,
		QueueLenResponseDeadlineInitial:  100 * time.Millisecond,
		QueueLenResponseDeadlineMax:      3 * time.Second,
		MaxSchedulingTasksHardCap:        50,
		ModelIDMatchTimeout:              1 * time.Second,
		TierDemotionAttempts:             3,
	}
}

// clamp normalizes a misconfigured Config in place (spec.md §7
// Misconfiguration: "clamped at construction; never fatal at runtime").
func (c *Config) clamp() {
	d := DefaultConfig()
	if c.QueueLenCacheStaleness <= 0 {
		c.QueueLenCacheStaleness = d.QueueLenCacheStaleness
	}
	if c.QueueLenResponseDeadlineInitial <= 0 {
		c.QueueLenResponseDeadlineInitial = d.QueueLenResponseDeadlineInitial
	}
	// "If max < initial is misconfigured, the initial value is always used
	// (no shrinkage)" — spec.md §4.5.
	if c.QueueLenResponseDeadlineMax < c.QueueLenResponseDeadlineInitial {
		c.QueueLenResponseDeadlineMax = c.QueueLenResponseDeadlineInitial
	}
	if c.MaxSchedulingTasksHardCap <= 0 {
		c.MaxSchedulingTasksHardCap = d.MaxSchedulingTasksHardCap
	}
	if c.ModelIDMatchTimeout < 0 {
		c.ModelIDMatchTimeout = d.ModelIDMatchTimeout
	}
	if c.TierDemotionAttempts <= 0 {
		c.TierDemotionAttempts = d.TierDemotionAttempts
	}
}

// candidateTier names the priority tiers the pool-construction algorithm
// narrows through (spec.md §4.3).
type candidateTier int

const (
	tierModelID candidateTier = iota
	tierSameNode
	tierSameAZ
	tierAll
)

func (t candidateTier) String() string {
	switch t {
	case tierModelID:
		return "model_id"
	case tierSameNode:
		return "same_node"
	case tierSameAZ:
		return "same_az"
	case tierAll:
		return "all"
	default:
		return "unknown"
	}
}

// SchedulingDecision is a structured log record for a single scheduling
// attempt outcome, mirroring the teacher's SchedulingDecision/logDecision
// idiom.
type SchedulingDecision struct {
	Decision  string `json:"decision"` // ASSIGN or CANCELLED
	RequestID string `json:"request_id"`
	ReplicaID string `json:"replica_id,omitempty"`
	Tier      string `json:"tier,omitempty"`
	DeadlineMS int64  `json:"deadline_ms,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
