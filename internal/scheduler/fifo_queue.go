package scheduler

import (
	"container/heap"
	"sync"
)

// pendingHeap is a container/heap.Interface ordered strictly by CreatedAt,
// implementing the FIFO-by-creation invariant of spec.md §3/§4.4. Unlike the
// teacher's TaskQueue (which ages priority over wait time), this queue has no
// notion of priority at all: the spec requires strict creation-time order,
// full stop.
type pendingHeap []*PendingRequest

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	return h[i].CreatedAt.Before(h[j].CreatedAt)
}

func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pendingHeap) Push(x interface{}) {
	pr := x.(*PendingRequest)
	pr.index = len(*h)
	*h = append(*h, pr)
}

func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	pr := old[n-1]
	old[n-1] = nil
	pr.index = -1
	*h = old[:n-1]
	return pr
}

// FIFOQueue is the scheduler's pending-request set: a concurrency-safe
// priority structure keyed by CreatedAt (spec.md §4.4).
type FIFOQueue struct {
	mu sync.Mutex
	h  pendingHeap
}

// NewFIFOQueue constructs an empty queue.
func NewFIFOQueue() *FIFOQueue {
	return &FIFOQueue{h: make(pendingHeap, 0)}
}

// Push enqueues a request.
func (q *FIFOQueue) Push(pr *PendingRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pr.inHeap = true
	heap.Push(&q.h, pr)
}

// PopHead removes and returns the earliest-created request, or nil if the
// queue is empty. Cancelled requests are removed from the heap the moment
// they are cancelled (see Cancel), so a popped head is never cancelled.
func (q *FIFOQueue) PopHead() *PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil
	}
	pr := heap.Pop(&q.h).(*PendingRequest)
	pr.inHeap = false
	return pr
}

// Cancel removes pr from the queue if it is still pending. Returns false if
// pr had already been popped (assigned or in the process of being assigned),
// in which case the cancellation races with an in-flight assignment and is
// not observable to any other request.
func (q *FIFOQueue) Cancel(pr *PendingRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !pr.inHeap {
		return false
	}
	heap.Remove(&q.h, pr.index)
	pr.inHeap = false
	return true
}

// Peek returns the earliest-created request without removing it, or nil if
// the queue is empty.
func (q *FIFOQueue) Peek() *PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// Len reports the number of requests currently pending.
func (q *FIFOQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}
