package ranker

import (
	"errors"
	"testing"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/standings"
)

func intp(v int) *int { return &v }

func TestSortAndRank_S3_TieBreakByPenalty(t *testing.T) {
	a := &standings.ParticipantState{Handle: "early", TotalPoints: 500, TotalPenalty: 5, LastAcTime: intp(300)}
	b := &standings.ParticipantState{Handle: "late", TotalPoints: 500, TotalPenalty: 10, LastAcTime: intp(600)}

	ranked := SortAndRank([]*standings.ParticipantState{b, a})

	if ranked[0].State.Handle != "early" || ranked[0].Rank != 1 {
		t.Fatalf("expected early first with rank 1, got %+v", ranked[0])
	}
	if ranked[1].State.Handle != "late" || ranked[1].Rank != 2 {
		t.Fatalf("expected late second with rank 2, got %+v", ranked[1])
	}
}

func TestSortAndRank_S4_LastAcTieProducesTiedRank(t *testing.T) {
	alice := &standings.ParticipantState{Handle: "alice", TotalPoints: 500, TotalPenalty: 2, LastAcTime: intp(120)}
	bob := &standings.ParticipantState{Handle: "bob", TotalPoints: 500, TotalPenalty: 2, LastAcTime: intp(120)}

	ranked := SortAndRank([]*standings.ParticipantState{alice, bob})

	if ranked[0].Rank != 1 || ranked[1].Rank != 1 {
		t.Fatalf("expected both tied at rank 1, got %+v / %+v", ranked[0], ranked[1])
	}
}

func TestSortAndRank_StandardCompetitionRanking(t *testing.T) {
	participants := []*standings.ParticipantState{
		{Handle: "p1", TotalPoints: 100},
		{Handle: "p2", TotalPoints: 100},
		{Handle: "p3", TotalPoints: 90},
		{Handle: "p4", TotalPoints: 80},
	}
	ranked := SortAndRank(participants)
	want := []int{1, 1, 3, 4}
	for i, r := range ranked {
		if r.Rank != want[i] {
			t.Errorf("entry %d: rank = %d, want %d", i, r.Rank, want[i])
		}
	}
}

func TestSortAndRank_NullLastAcTreatedAsInfinity(t *testing.T) {
	withAc := &standings.ParticipantState{Handle: "solved", TotalPoints: 100, LastAcTime: intp(50)}
	noAc := &standings.ParticipantState{Handle: "unsolved", TotalPoints: 100}

	ranked := SortAndRank([]*standings.ParticipantState{noAc, withAc})
	if ranked[0].State.Handle != "solved" {
		t.Fatalf("expected participant with a lastAcTime to rank before one without, got %+v", ranked[0])
	}
}

func TestRankLaw(t *testing.T) {
	participants := []*standings.ParticipantState{
		{Handle: "a", TotalPoints: 300, TotalPenalty: 10},
		{Handle: "b", TotalPoints: 300, TotalPenalty: 10},
		{Handle: "c", TotalPoints: 200, TotalPenalty: 5},
	}
	ranked := SortAndRank(participants)
	for i := 1; i < len(ranked); i++ {
		cmp := Compare(ranked[i-1].State, ranked[i].State)
		if ranked[i-1].Rank < ranked[i].Rank && cmp > 0 {
			t.Errorf("rank law violated: lower rank must compare <= 0, cmp=%d", cmp)
		}
		if ranked[i-1].Rank == ranked[i].Rank && cmp != 0 {
			t.Errorf("rank law violated: equal ranks must compare equal, cmp=%d", cmp)
		}
	}
}

func TestPaginate_PartitionLaw(t *testing.T) {
	participants := make([]*standings.ParticipantState, 0, 10)
	for i := 0; i < 10; i++ {
		participants = append(participants, &standings.ParticipantState{Handle: string(rune('a' + i)), TotalPoints: float64(100 - i)})
	}
	ranked := SortAndRank(participants)

	full, err := Paginate(ranked, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var reassembled []Ranked
	for _, window := range [][2]int{{1, 3}, {4, 6}, {7, 10}} {
		part, err := Paginate(ranked, window[0], window[1])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reassembled = append(reassembled, part...)
	}

	if len(reassembled) != len(full) {
		t.Fatalf("partitioned length %d != full length %d", len(reassembled), len(full))
	}
	for i := range full {
		if reassembled[i].State.Handle != full[i].State.Handle || reassembled[i].Rank != full[i].Rank {
			t.Errorf("entry %d mismatch: %+v vs %+v", i, reassembled[i], full[i])
		}
	}
}

func TestPaginate_InvalidRange(t *testing.T) {
	ranked := SortAndRank([]*standings.ParticipantState{{Handle: "a", TotalPoints: 1}})

	if _, err := Paginate(ranked, 0, 1); !errors.Is(err, apierrors.ErrInvalidRank) {
		t.Errorf("expected ErrInvalidRank for rankFrom < 1, got %v", err)
	}
	if _, err := Paginate(ranked, 5, 2); !errors.Is(err, apierrors.ErrInvalidRank) {
		t.Errorf("expected ErrInvalidRank for rankTo < rankFrom, got %v", err)
	}
}
