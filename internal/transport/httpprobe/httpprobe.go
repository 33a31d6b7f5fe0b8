// Package httpprobe is a concrete ReplicaHandle implementation that reaches
// a replica's queue-length endpoint over HTTP. It stands in for the
// actor/transport collaborator spec.md §1 places out of scope: the
// scheduler only ever calls through the scheduler.ReplicaHandle interface,
// never anything in this package directly.
package httpprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/itskum47/swarmrouter/internal/scheduler"
)

// Replica is an HTTP-reachable worker instance.
type Replica struct {
	id            string
	actorID       string
	nodeID        string
	az            string
	modelIDs      map[string]struct{}
	maxConcurrent int
	baseURL       string
	client        *http.Client
}

// New builds an HTTP-backed ReplicaHandle. actorID is opaque tracing
// metadata for the underlying process; pass "" if the caller has none.
func New(id, actorID, nodeID, az, baseURL string, modelIDs []string, maxConcurrent int) *Replica {
	ids := make(map[string]struct{}, len(modelIDs))
	for _, m := range modelIDs {
		ids[m] = struct{}{}
	}
	return &Replica{
		id:            id,
		actorID:       actorID,
		nodeID:        nodeID,
		az:            az,
		modelIDs:      ids,
		maxConcurrent: maxConcurrent,
		baseURL:       baseURL,
		client:        &http.Client{},
	}
}

func (r *Replica) ReplicaID() string { return r.id }
func (r *Replica) ActorID() string { return r.actorID }
func (r *Replica) NodeID() string { return r.nodeID }
func (r *Replica) AvailabilityZone() string { return r.az }
func (r *Replica) ModelIDs() map[string]struct{} { return r.modelIDs }
func (r *Replica) MaxConcurrentRequests() int { return r.maxConcurrent }

type queueLenResponse struct {
	QueueLength int `json:"queue_length"`
}

// ProbeQueueLength issues GET {baseURL}/queue-length, honoring both the
// caller's deadline and ctx cancellation.
func (r *Replica) ProbeQueueLength(ctx context.Context, deadline time.Duration) (int, error) {
	pctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, r.baseURL+"/queue-length", nil)
	if err != nil {
		return 0, fmt.Errorf("httpprobe: build request for %s: %w", r.id, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpprobe: probe %s: %w", r.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("httpprobe: replica %s returned status %d", r.id, resp.StatusCode)
	}

	var parsed queueLenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("httpprobe: decode response from %s: %w", r.id, err)
	}
	return parsed.QueueLength, nil
}

var _ scheduler.ReplicaHandle = (*Replica)(nil)
