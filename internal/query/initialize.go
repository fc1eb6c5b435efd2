package query

import (
	"context"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/snapshotstore"
)

// InitializeStandingsState populates the standingsState auxiliary
// collection for contestID by a full replay of its entire submission/hack
// stream (spec §6): the engine's most expensive single-contest operation,
// intended to run once per contest rather than per query.
func (e *Engine) InitializeStandingsState(ctx context.Context, contestID string, asOf int) error {
	snap, err := e.builder.ReplayWithoutPersisting(ctx, contestID, asOf)
	if err != nil {
		return err
	}

	ops := make([]snapshotstore.StandingsStateWriteOp, len(snap.Participants))
	for i, p := range snap.Participants {
		ops[i] = snapshotstore.StandingsStateWriteOp{ContestID: contestID, Handle: p.Handle, Document: p}
	}

	summary, err := e.store.StandingsState().BulkWrite(ctx, ops)
	if err != nil {
		return err
	}
	if len(summary.Errors) > 0 {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "initializeStandingsState: partial failures in bulk write", summary.Errors[0])
	}
	return nil
}
