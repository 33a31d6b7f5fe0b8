package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itskum47/swarmrouter/internal/scheduler"
)

const redisCacheKeyPrefix = "swarmrouter:qlen:"

// RedisQueueLengthCache implements scheduler.QueueLengthCache against a
// shared Redis instance, so multiple scheduler processes routing to the
// same replica pool can see each other's probe results (spec.md §4.6's
// contract, backed by a distributed store instead of a local map).
type RedisQueueLengthCache struct {
	client    *redis.Client
	staleness time.Duration
	clock     scheduler.Clock
}

// NewRedisQueueLengthCache builds a cache against an already-connected
// client.
func NewRedisQueueLengthCache(client *redis.Client, staleness time.Duration, clk scheduler.Clock) *RedisQueueLengthCache {
	if clk == nil {
		clk = scheduler.RealClock
	}
	return &RedisQueueLengthCache{client: client, staleness: staleness, clock: clk}
}

func (c *RedisQueueLengthCache) key(replicaID string) string {
	return redisCacheKeyPrefix + replicaID
}

// Get returns the stored value only if it is still fresh, matching the
// in-memory cache's contract exactly (spec.md §4.6).
func (c *RedisQueueLengthCache) Get(replicaID string) (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	vals, err := c.client.HMGet(ctx, c.key(replicaID), "len", "ts").Result()
	if err != nil || len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return 0, false
	}

	lenStr, ok1 := vals[0].(string)
	tsStr, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return 0, false
	}

	queueLen, err := strconv.Atoi(lenStr)
	if err != nil {
		return 0, false
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, false
	}

	lastUpdated := time.Unix(0, tsNano)
	if c.clock.Since(lastUpdated) >= c.staleness {
		return 0, false
	}
	return queueLen, true
}

// Update sets (queueLen, now) unconditionally.
func (c *RedisQueueLengthCache) Update(replicaID string, queueLen int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.client.HSet(ctx, c.key(replicaID), map[string]interface{}{
		"len": queueLen,
		"ts":  c.clock.Now().UnixNano(),
	})
	// Bound memory: let entries expire on their own well past staleness even
	// if RemoveInactive is never called for this replica again.
	c.client.Expire(ctx, c.key(replicaID), c.staleness*10)
}

// RemoveInactive deletes every entry whose key is not in active.
func (c *RedisQueueLengthCache) RemoveInactive(active map[string]struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := c.client.Scan(ctx, 0, redisCacheKeyPrefix+"*", 100).Iterator()
	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()
		replicaID := key[len(redisCacheKeyPrefix):]
		if _, ok := active[replicaID]; !ok {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		c.client.Del(ctx, stale...)
	}
}

var _ scheduler.QueueLengthCache = (*RedisQueueLengthCache)(nil)
