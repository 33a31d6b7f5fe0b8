package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itskum47/swarmrouter/internal/boundary"
	"github.com/itskum47/swarmrouter/internal/config"
	"github.com/itskum47/swarmrouter/internal/healthmon"
	"github.com/itskum47/swarmrouter/internal/scheduler"
	"github.com/itskum47/swarmrouter/internal/store"
	"github.com/itskum47/swarmrouter/internal/streaming"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var cache scheduler.QueueLengthCache
	if redisAddr := os.Getenv("SWARMROUTER_REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[WARN] Redis unavailable at %s, falling back to in-memory queue-length cache: %v", redisAddr, err)
		} else {
			log.Printf("Using Redis at %s for distributed queue-length cache", redisAddr)
			cache = store.NewRedisQueueLengthCache(client, cfg.QueueLenCacheStaleness, scheduler.RealClock)
		}
	}

	sched := scheduler.NewScheduler(cfg, scheduler.RealClock, cache)
	defer sched.Close()

	monitor := healthmon.NewMonitor(sched, 5*time.Second, 15*time.Second)
	monitor.Start(ctx)

	var publisher streaming.Publisher
	hub := streaming.NewHub()
	publisher = hub
	defer publisher.Close()

	var audit boundary.AuditRecorder
	if dsn := os.Getenv("SWARMROUTER_POSTGRES_DSN"); dsn != "" {
		auditStore, err := store.NewDecisionAuditStore(ctx, dsn)
		if err != nil {
			log.Printf("[WARN] audit store unavailable, decisions will not be persisted: %v", err)
		} else {
			defer auditStore.Close()
			audit = auditStore
		}
	}

	limiter := boundary.NewTokenBucketLimiter(50, 100)
	api := boundary.NewAPI(sched, monitor, publisher, audit, limiter)

	go boundary.PollGauges(ctx, sched, sched.ActiveReplicaCount, 2*time.Second)

	mux := http.NewServeMux()
	api.Routes(mux, hub)

	addr := os.Getenv("SWARMROUTER_LISTEN_ADDR")
	if addr == "" {
		addr = ":8090"
	}

	log.Printf("swarmrouterd listening on %s (node=%s az=%s)", addr, cfg.SelfNodeID, cfg.SelfAZ)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("swarmrouterd exited: %v", err)
	}
}
