// Package config loads swarmrouter's tunables from the environment,
// following the teacher's os.Getenv + fmt.Sscanf idiom (control_plane/main.go)
// rather than a config-file library.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/itskum47/swarmrouter/internal/scheduler"
)

// Load builds a scheduler.Config from the environment, falling back to
// scheduler.DefaultConfig() for anything unset or malformed; boolean
// variables read as true only for "true" or "1" and as false for any other
// non-empty value. Misconfigured
// values are clamped by scheduler.Config itself at construction time
// (spec.md §7); Load only resolves string/duration parsing, never panics.
func Load() scheduler.Config {
	cfg := scheduler.DefaultConfig()

	cfg.PreferLocalNode = envBool("SWARMROUTER_PREFER_LOCAL_NODE", cfg.PreferLocalNode)
	cfg.PreferLocalAZ = envBool("SWARMROUTER_PREFER_LOCAL_AZ", cfg.PreferLocalAZ)
	cfg.SelfNodeID = envString("SWARMROUTER_SELF_NODE_ID", cfg.SelfNodeID)
	cfg.SelfAZ = envString("SWARMROUTER_SELF_AZ", cfg.SelfAZ)
	cfg.UseQueueLenCache = envBool("SWARMROUTER_USE_QUEUE_LEN_CACHE", cfg.UseQueueLenCache)

	cfg.QueueLenCacheStaleness = envDuration("SWARMROUTER_QUEUE_LEN_CACHE_STALENESS", cfg.QueueLenCacheStaleness)
	cfg.QueueLenResponseDeadlineInitial = envDuration("SWARMROUTER_QUEUE_LEN_DEADLINE_INITIAL", cfg.QueueLenResponseDeadlineInitial)
	cfg.QueueLenResponseDeadlineMax = envDuration("SWARMROUTER_QUEUE_LEN_DEADLINE_MAX", cfg.QueueLenResponseDeadlineMax)
	cfg.ModelIDMatchTimeout = envDuration("SWARMROUTER_MODEL_ID_MATCH_TIMEOUT", cfg.ModelIDMatchTimeout)

	if v := envInt("SWARMROUTER_MAX_SCHEDULING_TASKS_HARD_CAP", cfg.MaxSchedulingTasksHardCap); v > 0 {
		cfg.MaxSchedulingTasksHardCap = v
	}
	if v := envInt("SWARMROUTER_TIER_DEMOTION_ATTEMPTS", cfg.TierDemotionAttempts); v > 0 {
		cfg.TierDemotionAttempts = v
	}

	if hostname, err := os.Hostname(); err == nil && cfg.SelfNodeID == "" {
		cfg.SelfNodeID = hostname
	}

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
