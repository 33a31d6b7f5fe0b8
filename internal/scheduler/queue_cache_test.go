package scheduler

import (
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestInMemoryQueueLengthCacheFreshness(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	cache := NewInMemoryQueueLengthCache(10*time.Second, fc)

	if _, ok := cache.Get("r1"); ok {
		t.Fatal("expected absent entry to report not-ok")
	}

	cache.Update("r1", 3)
	if v, ok := cache.Get("r1"); !ok || v != 3 {
		t.Fatalf("expected fresh entry (3, true), got (%d, %v)", v, ok)
	}

	fc.Step(9 * time.Second)
	if _, ok := cache.Get("r1"); !ok {
		t.Fatal("expected entry to still be fresh just under staleness")
	}

	fc.Step(2 * time.Second)
	if _, ok := cache.Get("r1"); ok {
		t.Fatal("expected entry to be stale past the staleness window")
	}
}

func TestInMemoryQueueLengthCacheRemoveInactive(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	cache := NewInMemoryQueueLengthCache(10*time.Second, fc)

	cache.Update("r1", 1)
	cache.Update("r2", 2)
	cache.RemoveInactive(map[string]struct{}{"r1": {}})

	if _, ok := cache.Get("r1"); !ok {
		t.Error("expected r1 to survive RemoveInactive")
	}
	if _, ok := cache.Get("r2"); ok {
		t.Error("expected r2 to be pruned by RemoveInactive")
	}
}

func TestInMemoryQueueLengthCacheUpdateResetsFreshness(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	cache := NewInMemoryQueueLengthCache(5*time.Second, fc)

	cache.Update("r1", 1)
	fc.Step(4 * time.Second)
	cache.Update("r1", 2)
	fc.Step(4 * time.Second)

	v, ok := cache.Get("r1")
	if !ok || v != 2 {
		t.Fatalf("expected refreshed entry (2, true), got (%d, %v)", v, ok)
	}
}
