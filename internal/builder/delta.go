package builder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

// priorSnapshot identifies the most recent snapshot (of either kind) at or
// before a given timestamp, normalized to its controlling base timestamp.
type priorSnapshot struct {
	timestampSeconds int
	baseTimestamp    int
}

// findPriorSnapshot locates latestSnapshot(contestId, at-or-before limit)
// across both the base and delta collections (spec §4.4 step 1): whichever
// of the two has the larger timestampSeconds at or before limit wins.
func (b *Builder) findPriorSnapshot(ctx context.Context, contestID string, limit int) (*priorSnapshot, error) {
	base, baseFound, err := b.store.BaseSnapshots().FindOne(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampLTE: &limit},
		Sort:   snapshotstore.SortDescending,
	})
	if err != nil {
		return nil, err
	}

	delta, deltaFound, err := b.store.DeltaSnapshots().FindOne(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampLTE: &limit},
		Sort:   snapshotstore.SortDescending,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case !baseFound && !deltaFound:
		return nil, nil
	case baseFound && (!deltaFound || base.TimestampSeconds >= delta.TimestampSeconds):
		return &priorSnapshot{timestampSeconds: base.TimestampSeconds, baseTimestamp: base.TimestampSeconds}, nil
	default:
		return &priorSnapshot{timestampSeconds: delta.TimestampSeconds, baseTimestamp: delta.BaseSnapshotTimestamp}, nil
	}
}

// reconstructStateAt rebuilds the participant-state map at timestampSeconds
// by loading the base snapshot at baseTimestamp and applying every delta
// snapshot strictly after it up to and including timestampSeconds, in
// ascending order (spec §4.4 step 3).
func (b *Builder) reconstructStateAt(ctx context.Context, contestID string, baseTimestamp, timestampSeconds int) (map[string]*standings.ParticipantState, error) {
	base, found, err := b.store.BaseSnapshots().FindOne(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampEq: &baseTimestamp},
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apierrors.NewData(apierrors.TagNoPriorSnapshot, "base snapshot at T=%d for contest %q not found", baseTimestamp, contestID)
	}

	state := make(map[string]*standings.ParticipantState, len(base.Participants))
	for _, p := range base.Participants {
		state[p.Handle] = p.Clone()
	}

	deltas, err := b.store.DeltaSnapshots().Find(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampGT: &baseTimestamp, TimestampLTE: &timestampSeconds},
		Sort:   snapshotstore.SortAscending,
	})
	if err != nil {
		return nil, err
	}
	for _, d := range deltas {
		for _, change := range d.Changes {
			state[change.Handle] = change.State.Clone()
		}
	}
	return state, nil
}

// CreateDeltaSnapshot computes the participants whose state changed since
// the prior snapshot and writes a DeltaSnapshot (spec §4.4). With no prior
// snapshot it degrades to a full CreateBaseSnapshot.
func (b *Builder) CreateDeltaSnapshot(ctx context.Context, contestID string, t int) (delta *standings.DeltaSnapshot, degradedBase *standings.BaseSnapshot, err error) {
	ctx, span := tracer.Start(ctx, "builder.create_delta_snapshot")
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
		return nil, nil, apierrors.NewInput(apierrors.TagInvalidTimestamp, "T must be >= 0, got %d", t)
	}

	if _, found, err := b.store.DeltaSnapshots().FindOne(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampEq: &t},
	}); err != nil {
		return nil, nil, err
	} else if found {
		return nil, nil, apierrors.ErrDuplicateSnapshot
	}

	prev, err := b.findPriorSnapshot(ctx, contestID, t-1)
	if err != nil {
		return nil, nil, err
	}
	if prev == nil {
		base, err := b.CreateBaseSnapshot(ctx, contestID, t)
		return nil, base, err
	}

	priorState, err := b.reconstructStateAt(ctx, contestID, prev.baseTimestamp, prev.timestampSeconds)
	if err != nil {
		return nil, nil, err
	}

	currentState := make(map[string]*standings.ParticipantState, len(priorState))
	for h, p := range priorState {
		currentState[h] = p.Clone()
	}

	points, err := b.pointsByIndex(ctx, contestID)
	if err != nil {
		return nil, nil, err
	}
	if err := b.replayWindow(ctx, contestID, prev.timestampSeconds, t, points, currentState); err != nil {
		return nil, nil, err
	}

	changes := diffStates(priorState, currentState)

	snap := &standings.DeltaSnapshot{
		ContestID:             contestID,
		TimestampSeconds:      t,
		BaseSnapshotTimestamp: prev.baseTimestamp,
		Changes:               changes,
		ChangeCount:           len(changes),
	}

	written, _, err := b.store.DeltaSnapshots().FindOneAndUpdate(ctx, snapshotstore.Filter{ContestID: contestID, TimestampEq: &t}, snap, true)
	if err != nil {
		return nil, nil, err
	}
	b.recordDeltaBuild(start, contestID, len(changes))
	return written, nil, nil
}

// diffStates reports, for every participant in current, an INSERT if absent
// from prior or an UPDATE if present but changed (spec §4.4 step 5).
// Participants unchanged since prior are omitted; there is no tombstone op.
func diffStates(prior, current map[string]*standings.ParticipantState) []standings.DeltaChange {
	handles := sortedHandles(current)
	changes := make([]standings.DeltaChange, 0, len(handles))
	for _, h := range handles {
		cur := current[h]
		old, existed := prior[h]
		if existed && old.Equal(cur) {
			continue
		}
		op := standings.DeltaChangeUpdate
		if !existed {
			op = standings.DeltaChangeInsert
		}
		changes = append(changes, standings.DeltaChange{Handle: h, Op: op, State: cur})
	}
	return changes
}
