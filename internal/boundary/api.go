// Package boundary is swarmrouterd's HTTP surface: admission (with rate
// limiting), assignment, health, metrics, and a websocket feed for
// dashboards. It is the integrator layer spec.md §1 describes as sitting
// outside the scheduler core — every telemetry update and audit write
// happens here, never inside internal/scheduler.
package boundary

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itskum47/swarmrouter/internal/healthmon"
	"github.com/itskum47/swarmrouter/internal/observability"
	"github.com/itskum47/swarmrouter/internal/scheduler"
	"github.com/itskum47/swarmrouter/internal/streaming"
	"github.com/itskum47/swarmrouter/internal/transport/httpprobe"
)

// AuditRecorder is the subset of store.DecisionAuditStore the API depends
// on, so tests can substitute a no-op.
type AuditRecorder interface {
	RecordDecision(ctx context.Context, d scheduler.SchedulingDecision) error
}

// API wires the scheduler core to HTTP, mirroring the teacher's api.go
// struct-of-collaborators shape.
type API struct {
	scheduler *scheduler.Scheduler
	monitor   *healthmon.Monitor
	publisher streaming.Publisher
	audit     AuditRecorder
	limiter   RateLimiter
}

// NewAPI builds an API. audit may be nil, in which case decisions are not
// persisted (e.g. when no Postgres DSN was configured).
func NewAPI(sched *scheduler.Scheduler, monitor *healthmon.Monitor, publisher streaming.Publisher, audit AuditRecorder, limiter RateLimiter) *API {
	return &API{
		scheduler: sched,
		monitor:   monitor,
		publisher: publisher,
		audit:     audit,
		limiter:   limiter,
	}
}

// Routes registers every handler on mux.
func (a *API) Routes(mux *http.ServeMux, hub *streaming.Hub) {
	mux.HandleFunc("/assign", a.handleAssign)
	mux.HandleFunc("/replicas/heartbeat", a.handleHeartbeat)
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		mux.HandleFunc("/ws", hub.ServeWS)
	}
}

type heartbeatRequest struct {
	ReplicaID             string   `json:"replica_id"`
	ActorID               string   `json:"actor_id"`
	NodeID                string   `json:"node_id"`
	AvailabilityZone      string   `json:"availability_zone"`
	BaseURL               string   `json:"base_url"`
	ModelIDs              []string `json:"model_ids"`
	MaxConcurrentRequests int      `json:"max_concurrent_requests"`
}

// handleHeartbeat registers (or refreshes) one replica's liveness, standing
// in for the real service-discovery feed a production deployment would use
// (spec.md §1's "external health monitor" collaborator).
func (a *API) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if body.ReplicaID == "" || body.BaseURL == "" {
		http.Error(w, "replica_id and base_url are required", http.StatusBadRequest)
		return
	}
	if body.MaxConcurrentRequests <= 0 {
		body.MaxConcurrentRequests = 1
	}

	handle := httpprobe.New(body.ReplicaID, body.ActorID, body.NodeID, body.AvailabilityZone,
		body.BaseURL, body.ModelIDs, body.MaxConcurrentRequests)
	a.monitor.Heartbeat(handle)
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	ModelID string `json:"model_id"`
}

type assignResponse struct {
	ReplicaID string `json:"replica_id"`
}

func (a *API) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body assignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	if a.limiter != nil && !a.limiter.Allow(body.ModelID) {
		a.writeRateLimitError(w)
		return
	}

	req := scheduler.NewPendingRequest(body.ModelID, time.Time{})

	start := time.Now()
	replica, err := a.scheduler.ChooseReplicaForRequest(r.Context(), req, false)
	observability.AssignmentWaitSeconds.Observe(time.Since(start).Seconds())

	decision := scheduler.SchedulingDecision{
		RequestID: req.RequestID,
	}

	if err != nil {
		decision.Decision = "CANCELLED"
		decision.Reason = err.Error()
		a.recordAndPublish(decision)
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}

	decision.Decision = "ASSIGN"
	decision.ReplicaID = replica.ReplicaID()
	// The boundary layer only sees the outcome, not which candidate tier
	// produced it (that detail lives inside the scheduling task) — tracked
	// under a single label until the core exposes it.
	observability.Assignments.WithLabelValues("unspecified").Inc()
	a.recordAndPublish(decision)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assignResponse{ReplicaID: replica.ReplicaID()})
}

// recordAndPublish fires the audit write and the telemetry publish on their
// own background context: both are best-effort side effects of a decision
// that has already been made, and must outlive the originating HTTP request.
func (a *API) recordAndPublish(d scheduler.SchedulingDecision) {
	if a.audit != nil {
		go func() { _ = a.audit.RecordDecision(context.Background(), d) }()
	}
	if a.publisher != nil {
		go func() { _ = a.publisher.Publish(context.Background(), "decisions", d) }()
	}
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeRateLimitError writes a 429 with a Retry-After header, mirroring the
// teacher's storm-protection response shape. The jitter is drawn in
// milliseconds and the header carries whole seconds, so its value is
// always 1.
func (a *API) writeRateLimitError(w http.ResponseWriter) {
	retryAfterMS := 1000 + rand.Intn(1000)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterMS/1000))
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
}
