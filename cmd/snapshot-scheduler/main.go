package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"standings-replay-engine/internal/config"
	"standings-replay-engine/internal/queue"

	"github.com/robfig/cron/v3"
)

// trackedContests names the contests this scheduler keeps live, read from
// TRACKED_CONTESTS as a comma-separated list (e.g. "contest-1,contest-2").
func trackedContests() []string {
	raw := os.Getenv("TRACKED_CONTESTS")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	qm := queue.NewQueueManager(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"))
	defer qm.Close()

	contests := trackedContests()
	if len(contests) == 0 {
		log.Println("TRACKED_CONTESTS is empty; snapshot-scheduler has nothing to tick")
	}

	var clock int
	c := cron.New()

	// Every DELTA_INTERVAL seconds, tick a single createSnapshot for each
	// tracked contest at the current logical clock; the worker's
	// classification (spec §4.4) decides whether it lands as a base or
	// delta snapshot.
	tickSpec := fmt.Sprintf("@every %ds", cfg.DeltaInterval)
	if _, err := c.AddFunc(tickSpec, func() {
		clock += cfg.DeltaInterval
		for _, contestID := range contests {
			payload := queue.BuildSnapshotPayload{
				ContestID:     contestID,
				Timestamp:     clock,
				BaseInterval:  cfg.BaseInterval,
				DeltaInterval: cfg.DeltaInterval,
			}
			if err := qm.EnqueueBuildSnapshot(ctx, payload); err != nil {
				log.Printf("failed to enqueue tick for contest %s at T=%d: %v", contestID, clock, err)
			}
		}
	}); err != nil {
		log.Fatal("Failed to schedule snapshot tick:", err)
	}

	c.Start()
	log.Println("snapshot-scheduler started successfully")
	log.Println("Press Ctrl+C to stop the scheduler")

	<-ctx.Done()
	log.Println("Shutting down snapshot-scheduler...")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Println("snapshot-scheduler stopped")
}
