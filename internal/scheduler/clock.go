package scheduler

import (
	"k8s.io/utils/clock"
)

// Clock is the injectable time source used throughout the scheduler and its
// cache (spec.md §2, §5, §9: "no direct wall-clock reads inside the
// scheduler or cache"). It is k8s.io/utils/clock.Clock verbatim — the
// teacher repository never abstracts time, so this is adopted from the
// karpenter example in the retrieval pack, which leans on the same
// interface (and its testing fake) wherever deterministic backoff or
// expiry needs to be tested.
type Clock = clock.Clock

// RealClock is the production clock backed by the OS.
var RealClock Clock = clock.RealClock{}
