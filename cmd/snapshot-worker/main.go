package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"standings-replay-engine/internal/builder"
	"standings-replay-engine/internal/config"
	"standings-replay-engine/internal/livefeed"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/queue"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/snapshotstore/filestore"
	"standings-replay-engine/internal/snapshotstore/mongostore"
	"standings-replay-engine/internal/source/pgsource"
	"standings-replay-engine/internal/tracing"
	"standings-replay-engine/pkg/database"
)

func main() {
	cfg := config.Load()

	tracingConfig := tracing.DefaultConfig()
	tracingConfig.ServiceName = "snapshot-worker"
	tracingShutdown := tracing.InitTracing(tracingConfig)
	if tracingShutdown != nil {
		defer func() {
			if err := tracingShutdown(context.Background()); err != nil {
				log.Printf("Error shutting down tracing: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewConnection()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open snapshot store:", err)
	}
	setStoreMetrics(store, metrics.NewStoreMetrics())

	src := pgsource.New(db)
	bld := builder.New(src, src, src, store)
	bld.SetMetrics(metrics.NewSnapshotMetrics())

	hub := livefeed.NewHub()
	go hub.Run(ctx)

	qm := queue.NewQueueManager(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"))
	defer qm.Close()

	handlers := &queue.Handlers{Builder: bld, Hub: hub}

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "8082"
	}
	http.Handle("/metrics", metrics.MetricsHandler())
	go func() {
		log.Printf("Metrics server starting on port %s", metricsPort)
		if err := http.ListenAndServe(":"+metricsPort, nil); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	if err := qm.Server.Start(handlers.Mux()); err != nil {
		log.Fatal("Failed to start asynq server:", err)
	}

	log.Println("snapshot-worker started successfully")
	log.Println("Press Ctrl+C to stop the worker")

	<-ctx.Done()
	log.Println("Shutting down snapshot-worker...")
	qm.Server.Stop()
	qm.Server.Shutdown()
	log.Println("snapshot-worker stopped")
}

func openStore(ctx context.Context, cfg config.Config) (snapshotstore.Store, error) {
	switch cfg.StandingsBackend {
	case config.BackendMongo:
		return mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return filestore.New(cfg.StandingsDataDir)
	}
}

// setStoreMetrics attaches m to store if its backend supports recording
// operation outcomes; both shipped backends do.
func setStoreMetrics(store snapshotstore.Store, m *metrics.StoreMetrics) {
	if s, ok := store.(interface{ SetMetrics(*metrics.StoreMetrics) }); ok {
		s.SetMetrics(m)
	}
}
