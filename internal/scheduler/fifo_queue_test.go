package scheduler

import (
	"testing"
	"time"
)

func TestFIFOQueuePopOrdersByCreatedAt(t *testing.T) {
	q := NewFIFOQueue()
	base := time.Now()

	third := NewPendingRequest("m", base.Add(2*time.Second))
	first := NewPendingRequest("m", base)
	second := NewPendingRequest("m", base.Add(1*time.Second))

	q.Push(third)
	q.Push(first)
	q.Push(second)

	if got := q.PopHead(); got != first {
		t.Errorf("expected first request popped, got %v", got.RequestID)
	}
	if got := q.PopHead(); got != second {
		t.Errorf("expected second request popped, got %v", got.RequestID)
	}
	if got := q.PopHead(); got != third {
		t.Errorf("expected third request popped, got %v", got.RequestID)
	}
	if got := q.PopHead(); got != nil {
		t.Errorf("expected nil from empty queue, got %v", got)
	}
}

func TestFIFOQueuePeekDoesNotRemove(t *testing.T) {
	q := NewFIFOQueue()
	pr := NewPendingRequest("m", time.Now())
	q.Push(pr)

	if q.Peek() != pr {
		t.Fatal("expected Peek to return the pushed request")
	}
	if q.Len() != 1 {
		t.Fatalf("expected Len 1 after Peek, got %d", q.Len())
	}
	if q.PopHead() != pr {
		t.Fatal("expected PopHead to still return the same request")
	}
}

func TestFIFOQueueCancelRemovesWithoutDisturbingOrder(t *testing.T) {
	q := NewFIFOQueue()
	base := time.Now()

	a := NewPendingRequest("m", base)
	b := NewPendingRequest("m", base.Add(1*time.Second))
	c := NewPendingRequest("m", base.Add(2*time.Second))

	q.Push(a)
	q.Push(b)
	q.Push(c)

	if !q.Cancel(b) {
		t.Fatal("expected Cancel(b) to succeed while b is pending")
	}
	if q.Len() != 2 {
		t.Fatalf("expected Len 2 after cancelling one of three, got %d", q.Len())
	}

	if got := q.PopHead(); got != a {
		t.Errorf("expected a first, got %v", got.RequestID)
	}
	if got := q.PopHead(); got != c {
		t.Errorf("expected c second (b skipped), got %v", got.RequestID)
	}
}

func TestFIFOQueueCancelAfterPopReturnsFalse(t *testing.T) {
	q := NewFIFOQueue()
	pr := NewPendingRequest("m", time.Now())
	q.Push(pr)
	q.PopHead()

	if q.Cancel(pr) {
		t.Error("expected Cancel to return false for an already-popped request")
	}
}
