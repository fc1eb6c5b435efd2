package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"standings-replay-engine/internal/builder"
	"standings-replay-engine/internal/livefeed"
)

// Handlers binds the task types this package defines to a Builder, so a
// worker process can run them. A non-nil Hub publishes a notification for
// every snapshot successfully built.
type Handlers struct {
	Builder *builder.Builder
	Hub     *livefeed.Hub
}

// Mux builds the asynq ServeMux a worker's Server should run.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeBuildSnapshot, h.handleBuildSnapshot)
	mux.HandleFunc(TaskTypeBuildSnapshotsBulk, h.handleBuildSnapshotsBulk)
	return mux
}

func (h *Handlers) handleBuildSnapshot(ctx context.Context, t *asynq.Task) error {
	tracer := otel.Tracer("snapshot-queue")
	ctx, span := tracer.Start(ctx, "queue.handle_build_snapshot")
	defer span.End()

	var payload BuildSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal build-snapshot payload: %w", err)
	}
	span.SetAttributes(
		attribute.String("contest.id", payload.ContestID),
		attribute.Int("snapshot.timestamp_seconds", payload.Timestamp),
	)

	if err := h.Builder.CreateSnapshot(ctx, payload.ContestID, payload.Timestamp, payload.BaseInterval, payload.DeltaInterval); err != nil {
		span.RecordError(err)
		return err
	}
	log.Printf("built snapshot for contest %s at T=%d", payload.ContestID, payload.Timestamp)
	if h.Hub != nil {
		h.Hub.Publish(payload.ContestID, payload.Timestamp)
	}
	return nil
}

func (h *Handlers) handleBuildSnapshotsBulk(ctx context.Context, t *asynq.Task) error {
	tracer := otel.Tracer("snapshot-queue")
	ctx, span := tracer.Start(ctx, "queue.handle_build_snapshots_bulk")
	defer span.End()

	var payload BuildSnapshotsBulkPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal bulk-build payload: %w", err)
	}
	span.SetAttributes(
		attribute.String("contest.id", payload.ContestID),
		attribute.Int("snapshot.window_start", payload.Start),
		attribute.Int("snapshot.window_end", payload.End),
	)

	result := h.Builder.CreateSnapshotsBulk(ctx, payload.ContestID, payload.Start, payload.End, payload.BaseInterval, payload.DeltaInterval)
	span.SetAttributes(
		attribute.Int("snapshot.base_created", result.BaseCreated),
		attribute.Int("snapshot.delta_created", result.DeltaCreated),
		attribute.Int("snapshot.error_count", len(result.Errors)),
	)
	log.Printf("bulk build for contest %s: %d base, %d delta, %d errors", payload.ContestID, result.BaseCreated, result.DeltaCreated, len(result.Errors))
	if h.Hub != nil && (result.BaseCreated > 0 || result.DeltaCreated > 0) {
		h.Hub.Publish(payload.ContestID, payload.End)
	}
	return nil
}
