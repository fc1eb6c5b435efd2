package builder_test

import (
	"context"
	"sync"
	"testing"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/builder"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/snapshotstore/filestore"
	"standings-replay-engine/internal/source"
	"standings-replay-engine/internal/source/memsource"
	"standings-replay-engine/internal/standings"
)

func points(v float64) *float64 { return &v }

func seedContest(t *testing.T) (*memsource.Fixture, string) {
	t.Helper()
	fx := memsource.New()
	fx.SeedMetadata(source.ContestMetadata{ContestID: "c1", Name: "Test Round"})
	fx.SeedProblems("c1", []standings.Problem{{Index: "A", Points: points(500)}})
	fx.SeedSubmissions("c1", []standings.Submission{
		{ID: 1, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 100, Verdict: standings.VerdictWrongAnswer},
		{ID: 2, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 200, Verdict: standings.VerdictWrongAnswer},
		{ID: 3, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 300, Verdict: standings.VerdictOK},
	})
	return fx, "c1"
}

func TestCreateBaseSnapshot_S2_PenaltyFromRejects(t *testing.T) {
	fx, contestID := seedContest(t)
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	bld := builder.New(fx, fx, fx, fs)

	snap, err := bld.CreateBaseSnapshot(context.Background(), contestID, 300)
	if err != nil {
		t.Fatalf("CreateBaseSnapshot: %v", err)
	}
	if snap.ParticipantCount != 1 {
		t.Fatalf("participantCount = %d, want 1", snap.ParticipantCount)
	}
	alice := snap.Participants[0]
	if alice.TotalPoints != 500 {
		t.Errorf("points = %v, want 500", alice.TotalPoints)
	}
	if alice.TotalPenalty != 2*20+300/60 {
		t.Errorf("penalty = %d, want %d", alice.TotalPenalty, 2*20+300/60)
	}
	if alice.Problems["A"].RejectCount != 2 {
		t.Errorf("rejectCount = %d, want 2", alice.Problems["A"].RejectCount)
	}
}

func TestCreateBaseSnapshot_DuplicateTimestampRejected(t *testing.T) {
	fx, contestID := seedContest(t)
	fs, _ := filestore.New(t.TempDir())
	bld := builder.New(fx, fx, fx, fs)

	ctx := context.Background()
	if _, err := bld.CreateBaseSnapshot(ctx, contestID, 300); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := bld.CreateBaseSnapshot(ctx, contestID, 300); err == nil {
		t.Fatal("expected duplicate-snapshot error on re-creation at same T")
	}
}

func TestCreateDeltaSnapshot_DegradesToBaseWithNoPrior(t *testing.T) {
	fx, contestID := seedContest(t)
	fs, _ := filestore.New(t.TempDir())
	bld := builder.New(fx, fx, fx, fs)

	delta, base, err := bld.CreateDeltaSnapshot(context.Background(), contestID, 300)
	if err != nil {
		t.Fatalf("CreateDeltaSnapshot: %v", err)
	}
	if delta != nil {
		t.Fatalf("expected nil delta when degrading to base, got %+v", delta)
	}
	if base == nil || base.TimestampSeconds != 300 {
		t.Fatalf("expected a base snapshot at T=300, got %+v", base)
	}
}

func TestCreateDeltaSnapshot_OnlyChangedParticipantsAppear(t *testing.T) {
	fx := memsource.New()
	fx.SeedProblems("c1", []standings.Problem{{Index: "A", Points: points(500)}, {Index: "B", Points: points(500)}})
	fx.SeedSubmissions("c1", []standings.Submission{
		{ID: 1, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 50, Verdict: standings.VerdictOK},
		{ID: 2, ProblemIndex: "B", Handle: "bob", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 60, Verdict: standings.VerdictOK},
		{ID: 3, ProblemIndex: "B", Handle: "bob", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 150, Verdict: standings.VerdictOK},
	})
	fs, _ := filestore.New(t.TempDir())
	bld := builder.New(fx, fx, fx, fs)
	ctx := context.Background()

	if _, err := bld.CreateBaseSnapshot(ctx, "c1", 120); err != nil {
		t.Fatalf("base: %v", err)
	}
	delta, base, err := bld.CreateDeltaSnapshot(ctx, "c1", 180)
	if err != nil {
		t.Fatalf("delta: %v", err)
	}
	if base != nil {
		t.Fatalf("expected a true delta (prior base exists), got degraded base %+v", base)
	}
	if delta.ChangeCount != 1 || delta.Changes[0].Handle != "bob" {
		t.Fatalf("expected exactly one change for bob, got %+v", delta.Changes)
	}
	if delta.Changes[0].Op != standings.DeltaChangeUpdate {
		t.Errorf("op = %s, want UPDATE (bob pre-existed in the base)", delta.Changes[0].Op)
	}
}

func TestCreateSnapshot_ClassifiesByInterval(t *testing.T) {
	fx, contestID := seedContest(t)
	fs, _ := filestore.New(t.TempDir())
	bld := builder.New(fx, fx, fx, fs)
	ctx := context.Background()

	if err := bld.CreateSnapshot(ctx, contestID, 120, 120, 10); err != nil {
		t.Fatalf("T=120 should classify as base: %v", err)
	}
	ts120 := 120
	if _, found, _ := fs.BaseSnapshots().FindOne(ctx, snapshotstore.Query{Filter: snapshotstore.Filter{ContestID: contestID, TimestampEq: &ts120}}); !found {
		t.Error("expected a base snapshot written at T=120")
	}

	if err := bld.CreateSnapshot(ctx, contestID, 125, 120, 10); err == nil {
		t.Error("T=125 matches neither interval, expected rejection")
	}
}

func TestCreateSnapshotsBulk_PartialSuccessContinuesOnError(t *testing.T) {
	fx, contestID := seedContest(t)
	fs, _ := filestore.New(t.TempDir())
	bld := builder.New(fx, fx, fx, fs)
	ctx := context.Background()

	// Pre-seed a duplicate at T=120 so the bulk run hits exactly one error
	// there, and must still complete the rest of the window.
	if _, err := bld.CreateBaseSnapshot(ctx, contestID, 120); err != nil {
		t.Fatalf("pre-seed: %v", err)
	}

	result := bld.CreateSnapshotsBulk(ctx, contestID, 0, 240, 120, 10)
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly 1 error (duplicate at T=120), got %d: %v", len(result.Errors), result.Errors)
	}
	// Bases at 0, 240 succeed (120 collides); every non-base-interval
	// multiple of 10 in [0,240] succeeds as a delta.
	if result.BaseCreated != 2 {
		t.Errorf("baseCreated = %d, want 2", result.BaseCreated)
	}
}

// TestCreateBaseSnapshot_ConcurrentCreatesAtSameTimestamp exercises true
// goroutine concurrency on the file backend: whichever call wins the
// file-lock race commits, every loser must observe ErrDuplicateSnapshot
// rather than silently overwriting the winner's document (spec §4.3).
func TestCreateBaseSnapshot_ConcurrentCreatesAtSameTimestamp(t *testing.T) {
	fx, contestID := seedContest(t)
	fs, _ := filestore.New(t.TempDir())
	bld := builder.New(fx, fx, fx, fs)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	successes := make([]bool, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := bld.CreateBaseSnapshot(ctx, contestID, 300)
			errs[i] = err
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	winCount := 0
	for i := 0; i < writers; i++ {
		if successes[i] {
			winCount++
			continue
		}
		if errs[i] != apierrors.ErrDuplicateSnapshot {
			t.Errorf("writer %d: expected ErrDuplicateSnapshot, got %v", i, errs[i])
		}
	}
	if winCount != 1 {
		t.Errorf("expected exactly 1 writer to win the race, got %d", winCount)
	}

	store := fs.BaseSnapshots()
	count, err := store.CountDocuments(ctx, snapshotstore.Filter{ContestID: contestID})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 stored base snapshot at T=300, got %d", count)
	}
}
