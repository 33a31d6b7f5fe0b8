// Package store holds integrator-level persistence: a write-only scheduling
// decision audit trail (Postgres) and a distributed QueueLengthCache backend
// (Redis). Neither is part of the scheduler CORE — both are layered on top
// of its public interfaces, mirroring the teacher's store/postgres.go and
// store/redis.go idioms.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itskum47/swarmrouter/internal/scheduler"
)

// DecisionAuditStore persists a history of scheduling decisions for offline
// analysis (spec.md §9's non-goal is restoring scheduler *state* across
// restarts, not an append-only log of *past* decisions — this is the latter).
type DecisionAuditStore struct {
	pool *pgxpool.Pool
}

// NewDecisionAuditStore opens a connection pool and verifies connectivity.
func NewDecisionAuditStore(ctx context.Context, connString string) (*DecisionAuditStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DecisionAuditStore{pool: pool}, nil
}

// Close releases the pool.
func (s *DecisionAuditStore) Close() {
	s.pool.Close()
}

// RecordDecision appends one scheduling decision to the audit trail. Errors
// are the caller's to log-and-drop: an audit write failure must never affect
// scheduling (spec.md §7 "nothing is fatal").
func (s *DecisionAuditStore) RecordDecision(ctx context.Context, d scheduler.SchedulingDecision) error {
	const query = `
		INSERT INTO scheduling_decisions (request_id, replica_id, tier, decision, reason, deadline_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		d.RequestID, d.ReplicaID, d.Tier, d.Decision, d.Reason, d.DeadlineMS, time.Now(),
	)
	return err
}
