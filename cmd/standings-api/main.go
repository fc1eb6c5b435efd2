package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"standings-replay-engine/internal/builder"
	"standings-replay-engine/internal/config"
	"standings-replay-engine/internal/httpapi"
	"standings-replay-engine/internal/livefeed"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/query"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/snapshotstore/filestore"
	"standings-replay-engine/internal/snapshotstore/mongostore"
	"standings-replay-engine/internal/source/pgsource"
	"standings-replay-engine/internal/tracing"
	"standings-replay-engine/pkg/database"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.Load()

	tracingConfig := tracing.DefaultConfig()
	tracingConfig.ServiceName = "standings-api"
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

	engine := query.New(store, src, src, bld)
	engine.SetMetrics(metrics.NewQueryMetrics())

	hub := livefeed.NewHub()
	go hub.Run(ctx)

	api := httpapi.New(engine)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(tracing.HTTPMiddleware("standings-api"))
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:4321"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
	})
	r.Handle("/metrics", metrics.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		api.Routes(r)
		r.Get("/contests/{id}/live", livefeed.Handler(hub))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("standings-api starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down standings-api...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	} else {
		log.Println("Server shutdown complete")
	}
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
