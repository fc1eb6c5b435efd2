package builder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

// CreateBaseSnapshot replays every submission and hack with
// relativeTimeSeconds <= T into a fresh participant-state map and writes it
// as a BaseSnapshot (spec §4.4). Re-creating at an already-occupied T is an
// error; the caller must remove the existing snapshot first.
func (b *Builder) CreateBaseSnapshot(ctx context.Context, contestID string, t int) (snap *standings.BaseSnapshot, err error) {
	ctx, span := tracer.Start(ctx, "builder.create_base_snapshot")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("contest.id", contestID),
		attribute.Int("snapshot.timestamp_seconds", t),
	)

	start := time.Now()
	if t < 0 {
		return nil, apierrors.NewInput(apierrors.TagInvalidTimestamp, "T must be >= 0, got %d", t)
	}

	if _, found, err := b.store.BaseSnapshots().FindOne(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampEq: &t},
	}); err != nil {
		return nil, err
	} else if found {
		return nil, apierrors.ErrDuplicateSnapshot
	}

	points, err := b.pointsByIndex(ctx, contestID)
	if err != nil {
		return nil, err
	}

	state := make(map[string]*standings.ParticipantState)
	if err := b.replayWindow(ctx, contestID, -1, t, points, state); err != nil {
		return nil, err
	}

	handles := sortedHandles(state)
	participants := make([]*standings.ParticipantState, 0, len(handles))
	for _, h := range handles {
		participants = append(participants, state[h])
	}

	built := &standings.BaseSnapshot{
		ContestID:        contestID,
		TimestampSeconds: t,
		Participants:     participants,
		ParticipantCount: len(participants),
	}

	written, _, err := b.store.BaseSnapshots().FindOneAndUpdate(ctx, snapshotstore.Filter{ContestID: contestID, TimestampEq: &t}, built, true)
	if err != nil {
		return nil, err
	}
	b.recordBaseBuild(start, contestID, len(participants))
	span.SetAttributes(attribute.Int("snapshot.participant_count", len(participants)))
	return written, nil
}

// ReplayWithoutPersisting builds the same full-state snapshot
// CreateBaseSnapshot would, without checking for or writing a stored
// BaseSnapshot document. Used by the Query Engine's legacy fallback path
// (spec §4.5 step 1) when no base snapshot exists yet for a contest.
func (b *Builder) ReplayWithoutPersisting(ctx context.Context, contestID string, t int) (*standings.BaseSnapshot, error) {
	if t < 0 {
		return nil, apierrors.NewInput(apierrors.TagInvalidTimestamp, "T must be >= 0, got %d", t)
	}

	points, err := b.pointsByIndex(ctx, contestID)
	if err != nil {
		return nil, err
	}

	state := make(map[string]*standings.ParticipantState)
	if err := b.replayWindow(ctx, contestID, -1, t, points, state); err != nil {
		return nil, err
	}

	handles := sortedHandles(state)
	participants := make([]*standings.ParticipantState, 0, len(handles))
	for _, h := range handles {
		participants = append(participants, state[h])
	}

	return &standings.BaseSnapshot{
		ContestID:        contestID,
		TimestampSeconds: t,
		Participants:     participants,
		ParticipantCount: len(participants),
	}, nil
}
