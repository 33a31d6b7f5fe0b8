package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// PendingRequest is a request awaiting assignment to a replica (spec.md §3).
type PendingRequest struct {
	// CreatedAt orders requests for FIFO assignment; stamped with the
	// scheduler's clock by ChooseReplicaForRequest, except on a retry that
	// already carries a non-zero value (preserved so a resubmitted request
	// keeps its place in line).
	CreatedAt time.Time

	// ModelID optionally ties this request to replicas carrying that tag in
	// their ModelIDs set. Empty means no affinity.
	ModelID string

	// RequestID is opaque and used only for tracing; it never affects
	// ordering or equality.
	RequestID string

	// index is the position of this request inside the scheduler's pending
	// heap; maintained by container/heap and used for O(log n) cancellation.
	index int

	// inHeap reports whether this request is still linked into the pending
	// heap; cleared by PopHead and Cancel, checked by Cancel to make a
	// cancellation of an already-popped request a no-op (spec.md §4.4).
	inHeap bool

	resultCh chan assignmentResult
}

type assignmentResult struct {
	replica ReplicaHandle
	err     error
}

// NewPendingRequest builds a request; if createdAt is the zero time it is
// defaulted by the caller (Scheduler.ChooseReplicaForRequest) to the
// scheduler's clock.
func NewPendingRequest(modelID string, createdAt time.Time) *PendingRequest {
	return &PendingRequest{
		CreatedAt: createdAt,
		ModelID:   modelID,
		RequestID: uuid.NewString(),
		resultCh:  make(chan assignmentResult, 1),
	}
}
