package scheduler

import "math/rand"

// buildCandidatePool implements the tier-narrowing rules of spec.md §4.3,
// starting the search at startTier and advancing forward (never back) to the
// first tier that actually has candidates. It returns the pool to sample
// from and the tier that produced it.
func (s *Scheduler) buildCandidatePool(peeked *PendingRequest, active []ReplicaHandle, startTier candidateTier) ([]ReplicaHandle, candidateTier) {
	for t := startTier; t <= tierAll; t++ {
		switch t {
		case tierModelID:
			if peeked.ModelID == "" {
				continue
			}
			withModel := filterReplicas(active, func(r ReplicaHandle) bool {
				_, ok := r.ModelIDs()[peeked.ModelID]
				return ok
			})
			if len(withModel) == 0 {
				// "If NO replica has the id at all, skip this tier entirely."
				continue
			}
			if s.clock.Since(peeked.CreatedAt) < s.cfg.ModelIDMatchTimeout {
				return withModel, tierModelID
			}
			// Grace window elapsed and still unfulfilled: broaden with the
			// replica(s) carrying the fewest loaded models, to avoid piling
			// onto hot multiplexed replicas.
			pool := unionReplicas(withModel, fewestLoadedModels(active))
			return pool, tierModelID
		case tierSameNode:
			if !s.cfg.PreferLocalNode || s.cfg.SelfNodeID == "" {
				continue
			}
			local := filterReplicas(active, func(r ReplicaHandle) bool {
				return r.NodeID() == s.cfg.SelfNodeID
			})
			if len(local) == 0 {
				continue
			}
			return local, tierSameNode
		case tierSameAZ:
			if !s.cfg.PreferLocalAZ || s.cfg.SelfAZ == "" {
				continue
			}
			local := filterReplicas(active, func(r ReplicaHandle) bool {
				return r.AvailabilityZone() == s.cfg.SelfAZ
			})
			if len(local) == 0 {
				continue
			}
			return local, tierSameAZ
		case tierAll:
			return active, tierAll
		}
	}
	return active, tierAll
}

func filterReplicas(in []ReplicaHandle, keep func(ReplicaHandle) bool) []ReplicaHandle {
	out := make([]ReplicaHandle, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// fewestLoadedModels returns the replica(s) with the smallest ModelIDs set
// among all active replicas.
func fewestLoadedModels(active []ReplicaHandle) []ReplicaHandle {
	if len(active) == 0 {
		return nil
	}
	min := -1
	for _, r := range active {
		n := len(r.ModelIDs())
		if min == -1 || n < min {
			min = n
		}
	}
	return filterReplicas(active, func(r ReplicaHandle) bool { return len(r.ModelIDs()) == min })
}

func unionReplicas(a, b []ReplicaHandle) []ReplicaHandle {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]ReplicaHandle, 0, len(a)+len(b))
	for _, group := range [][]ReplicaHandle{a, b} {
		for _, r := range group {
			if _, ok := seen[r.ReplicaID()]; ok {
				continue
			}
			seen[r.ReplicaID()] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// sampleTwo draws two distinct replicas uniformly at random from pool, or a
// single one if the pool has exactly one (spec.md §4.2). Callers must not
// invoke this with an empty pool.
func sampleTwo(pool []ReplicaHandle) (a, b ReplicaHandle) {
	if len(pool) == 1 {
		return pool[0], nil
	}
	i := rand.Intn(len(pool))
	j := rand.Intn(len(pool) - 1)
	if j >= i {
		j++
	}
	return pool[i], pool[j]
}
