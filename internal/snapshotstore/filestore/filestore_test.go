package filestore

import (
	"context"
	"testing"

	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

func TestFileStore_BaseSnapshotRoundTrip(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	store := fs.BaseSnapshots()

	ts := 120
	snap := &standings.BaseSnapshot{ContestID: "c1", TimestampSeconds: ts, ParticipantCount: 0}

	_, ok, err := store.FindOneAndUpdate(ctx, snapshotstore.Filter{ContestID: "c1", TimestampEq: &ts}, snap, true)
	if err != nil || !ok {
		t.Fatalf("FindOneAndUpdate insert: ok=%v err=%v", ok, err)
	}

	got, found, err := store.FindOne(ctx, snapshotstore.Query{Filter: snapshotstore.Filter{ContestID: "c1", TimestampEq: &ts}})
	if err != nil || !found {
		t.Fatalf("FindOne: found=%v err=%v", found, err)
	}
	if got.TimestampSeconds != 120 {
		t.Errorf("timestamp = %d, want 120", got.TimestampSeconds)
	}

	count, err := store.CountDocuments(ctx, snapshotstore.Filter{ContestID: "c1"})
	if err != nil || count != 1 {
		t.Errorf("count = %d, err = %v, want 1", count, err)
	}

	// An unoccupied timestamp with upsert=false should not create.
	missingTs := 999
	_, ok, err = store.FindOneAndUpdate(ctx, snapshotstore.Filter{ContestID: "c1", TimestampEq: &missingTs}, snap, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected no document created when upsert=false and nothing matches")
	}
}

func TestFileStore_DescendingSortAndLimit(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	store := fs.BaseSnapshots()

	for _, ts := range []int{0, 120, 240} {
		t := ts
		store.FindOneAndUpdate(ctx, snapshotstore.Filter{ContestID: "c1", TimestampEq: &t}, &standings.BaseSnapshot{ContestID: "c1", TimestampSeconds: t}, true)
	}

	limitTs := 240
	docs, err := store.Find(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: "c1", TimestampLTE: &limitTs},
		Sort:   snapshotstore.SortDescending,
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 1 || docs[0].TimestampSeconds != 240 {
		t.Fatalf("expected latest snapshot (240), got %+v", docs)
	}
}

func TestFileStore_StandingsStateBulkWrite(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	store := fs.StandingsState()

	ops := []snapshotstore.StandingsStateWriteOp{
		{ContestID: "c1", Handle: "alice", Document: standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)},
		{ContestID: "c1", Handle: "bob", Document: standings.NewParticipantState("bob", standings.ParticipantTypeContestant, false)},
	}
	summary, err := store.BulkWrite(ctx, ops)
	if err != nil {
		t.Fatalf("BulkWrite: %v", err)
	}
	if summary.Upserted != 2 {
		t.Errorf("upserted = %d, want 2", summary.Upserted)
	}

	// Re-running with an already-present handle should modify, not re-insert.
	ops2 := []snapshotstore.StandingsStateWriteOp{
		{ContestID: "c1", Handle: "alice", Document: standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)},
	}
	summary2, err := store.BulkWrite(ctx, ops2)
	if err != nil {
		t.Fatalf("BulkWrite: %v", err)
	}
	if summary2.Modified != 1 || summary2.Upserted != 0 {
		t.Errorf("expected 1 modified, 0 upserted, got %+v", summary2)
	}

	count, err := store.CountDocuments(ctx, "c1")
	if err != nil || count != 2 {
		t.Errorf("count = %d, err = %v, want 2", count, err)
	}
}
