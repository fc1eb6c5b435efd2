package query_test

import (
	"context"
	"errors"
	"testing"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/builder"
	"standings-replay-engine/internal/query"
	"standings-replay-engine/internal/snapshotstore/filestore"
	"standings-replay-engine/internal/source"
	"standings-replay-engine/internal/source/memsource"
	"standings-replay-engine/internal/standings"
)

func points(v float64) *float64 { return &v }

func newEngine(t *testing.T, fx *memsource.Fixture) (*query.Engine, *builder.Builder) {
	t.Helper()
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	bld := builder.New(fx, fx, fx, fs)
	return query.New(fs, fx, fx, bld), bld
}

func TestStandingsAt_S1_OneParticipantOneAccept(t *testing.T) {
	fx := memsource.New()
	fx.SeedMetadata(source.ContestMetadata{ContestID: "c1", Name: "Round 1"})
	fx.SeedProblems("c1", []standings.Problem{{Index: "A", Points: points(500)}})
	fx.SeedSubmissions("c1", []standings.Submission{
		{ID: 1, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 600, Verdict: standings.VerdictOK},
	})
	engine, _ := newEngine(t, fx)

	result, err := engine.StandingsAt(context.Background(), "c1", 600, 1, 0, true)
	if err != nil {
		t.Fatalf("StandingsAt: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	row := result.Rows[0]
	if row.Rank != 1 || row.Points != 500 || row.Penalty != 10 {
		t.Errorf("row = %+v, want rank=1 points=500 penalty=10", row)
	}
	if len(row.ProblemResults) != 1 || row.ProblemResults[0].RejectedAttemptCount != 0 || *row.ProblemResults[0].BestSubmissionTimeSeconds != 600 {
		t.Errorf("problemResults = %+v", row.ProblemResults)
	}
}

func TestStandingsAt_S3_RankingTieBreakByPenalty(t *testing.T) {
	fx := memsource.New()
	fx.SeedMetadata(source.ContestMetadata{ContestID: "c1", Name: "Round 1"})
	fx.SeedProblems("c1", []standings.Problem{{Index: "A", Points: points(500)}})
	fx.SeedSubmissions("c1", []standings.Submission{
		{ID: 1, ProblemIndex: "A", Handle: "fast", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 300, Verdict: standings.VerdictOK},
		{ID: 2, ProblemIndex: "A", Handle: "slow", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 600, Verdict: standings.VerdictOK},
	})
	engine, _ := newEngine(t, fx)

	result, err := engine.StandingsAt(context.Background(), "c1", 600, 1, 0, true)
	if err != nil {
		t.Fatalf("StandingsAt: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(result.Rows))
	}
	if result.Rows[0].Party.Members[0].Handle != "fast" || result.Rows[0].Rank != 1 {
		t.Errorf("expected fast ranked 1st, got %+v", result.Rows[0])
	}
	if result.Rows[1].Party.Members[0].Handle != "slow" || result.Rows[1].Rank != 2 {
		t.Errorf("expected slow ranked 2nd, got %+v", result.Rows[1])
	}
}

func TestStandingsAt_S4_LastAcTieProducesTiedRank(t *testing.T) {
	fx := memsource.New()
	fx.SeedMetadata(source.ContestMetadata{ContestID: "c1", Name: "Round 1"})
	fx.SeedProblems("c1", []standings.Problem{{Index: "A", Points: points(500)}, {Index: "B", Points: points(500)}})
	fx.SeedSubmissions("c1", []standings.Submission{
		{ID: 1, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 120, Verdict: standings.VerdictOK},
		{ID: 2, ProblemIndex: "B", Handle: "bob", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 120, Verdict: standings.VerdictOK},
	})
	engine, _ := newEngine(t, fx)

	result, err := engine.StandingsAt(context.Background(), "c1", 120, 1, 0, true)
	if err != nil {
		t.Fatalf("StandingsAt: %v", err)
	}
	if result.Rows[0].Rank != 1 || result.Rows[1].Rank != 1 {
		t.Errorf("expected both tied at rank 1, got ranks %d and %d", result.Rows[0].Rank, result.Rows[1].Rank)
	}
}

func TestStandingsAt_S5_UnofficialFilter(t *testing.T) {
	fx := memsource.New()
	fx.SeedMetadata(source.ContestMetadata{ContestID: "c1", Name: "Round 1"})
	fx.SeedProblems("c1", []standings.Problem{{Index: "A", Points: points(500)}})
	fx.SeedSubmissions("c1", []standings.Submission{
		{ID: 1, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 120, Verdict: standings.VerdictOK},
		{ID: 2, ProblemIndex: "A", Handle: "vbob", ParticipantType: standings.ParticipantTypeVirtual, RelativeTimeSeconds: 120, Verdict: standings.VerdictOK},
	})
	engine, _ := newEngine(t, fx)
	ctx := context.Background()

	official, err := engine.StandingsAt(ctx, "c1", 120, 1, 0, false)
	if err != nil {
		t.Fatalf("StandingsAt official: %v", err)
	}
	if len(official.Rows) != 1 || official.Rows[0].Party.Members[0].Handle != "alice" {
		t.Errorf("expected only alice in official standings, got %+v", official.Rows)
	}

	all, err := engine.StandingsAt(ctx, "c1", 120, 1, 0, true)
	if err != nil {
		t.Fatalf("StandingsAt all: %v", err)
	}
	if len(all.Rows) != 2 {
		t.Errorf("expected both participants with includeUnofficial=true, got %d", len(all.Rows))
	}
}

func TestStandingsAt_UnknownContestReturnsEmptyResult(t *testing.T) {
	fx := memsource.New()
	engine, _ := newEngine(t, fx)

	result, err := engine.StandingsAt(context.Background(), "ghost", 100, 1, 0, true)
	if err != nil {
		t.Fatalf("unexpected error for unknown contest: %v", err)
	}
	if result.Contest != (source.ContestMetadata{}) || len(result.Rows) != 0 {
		t.Errorf("expected empty result for unknown contest, got %+v", result)
	}
}

func TestStandingsAt_InvalidRankRangeIsInputError(t *testing.T) {
	fx := memsource.New()
	fx.SeedMetadata(source.ContestMetadata{ContestID: "c1", Name: "Round 1"})
	engine, _ := newEngine(t, fx)

	if _, err := engine.StandingsAt(context.Background(), "c1", 100, 0, 0, true); !errors.Is(err, apierrors.ErrInvalidRank) {
		t.Errorf("expected ErrInvalidRank for rankFrom < 1, got %v", err)
	}
	if _, err := engine.StandingsAt(context.Background(), "c1", 100, 5, 2, true); !errors.Is(err, apierrors.ErrInvalidRank) {
		t.Errorf("expected ErrInvalidRank for rankTo < rankFrom, got %v", err)
	}
}

// TestStandingsAt_S6_SnapshotFidelity builds the full base/delta schedule
// for BASE_INTERVAL=120, DELTA_INTERVAL=10 and checks that at every
// snapshot-bearing T the snapshot-backed answer agrees with an independent
// full replay (spec §8 S6).
func TestStandingsAt_S6_SnapshotFidelity(t *testing.T) {
	fx := memsource.New()
	fx.SeedMetadata(source.ContestMetadata{ContestID: "c1", Name: "Round 1"})
	fx.SeedProblems("c1", []standings.Problem{{Index: "A", Points: points(500)}, {Index: "B", Points: points(1000)}})
	fx.SeedSubmissions("c1", []standings.Submission{
		{ID: 1, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 15, Verdict: standings.VerdictWrongAnswer},
		{ID: 2, ProblemIndex: "A", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 45, Verdict: standings.VerdictOK},
		{ID: 3, ProblemIndex: "B", Handle: "bob", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 95, Verdict: standings.VerdictOK},
		{ID: 4, ProblemIndex: "B", Handle: "alice", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 150, Verdict: standings.VerdictOK},
		{ID: 5, ProblemIndex: "A", Handle: "bob", ParticipantType: standings.ParticipantTypeContestant, RelativeTimeSeconds: 205, Verdict: standings.VerdictOK},
	})
	engine, bld := newEngine(t, fx)
	ctx := context.Background()

	result := bld.CreateSnapshotsBulk(ctx, "c1", 0, 240, 120, 10)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors building schedule: %v", result.Errors)
	}

	for ts := 0; ts <= 240; ts += 10 {
		report, err := engine.Validate(ctx, "c1", ts)
		if err != nil {
			t.Fatalf("Validate at T=%d: %v", ts, err)
		}
		if !report.Matches {
			t.Errorf("T=%d: snapshot chain diverges from reference replay: %+v", ts, report.Differences)
		}
	}
}
