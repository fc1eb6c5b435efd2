package events

import (
	"testing"

	"standings-replay-engine/internal/standings"
)

func TestApplySubmission_S1_OneAccept(t *testing.T) {
	state := standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)
	sub := standings.Submission{
		ProblemIndex:        "A",
		Handle:              "alice",
		ParticipantType:     standings.ParticipantTypeContestant,
		RelativeTimeSeconds: 600,
		Verdict:             standings.VerdictOK,
	}

	ApplySubmission(state, sub, 500)

	if state.TotalPoints != 500 {
		t.Errorf("totalPoints = %v, want 500", state.TotalPoints)
	}
	if state.TotalPenalty != 10 {
		t.Errorf("totalPenalty = %v, want 10", state.TotalPenalty)
	}
	if state.SolvedCount != 1 {
		t.Errorf("solvedCount = %v, want 1", state.SolvedCount)
	}
	ps := state.Problems["A"]
	if !ps.Solved || ps.RejectCount != 0 || ps.SolveTime == nil || *ps.SolveTime != 600 {
		t.Errorf("unexpected problem state: %+v", ps)
	}
}

func TestApplySubmission_S2_PenaltyFromRejects(t *testing.T) {
	state := standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)
	subs := []standings.Submission{
		{ProblemIndex: "A", RelativeTimeSeconds: 100, Verdict: standings.VerdictWrongAnswer},
		{ProblemIndex: "A", RelativeTimeSeconds: 200, Verdict: standings.VerdictWrongAnswer},
		{ProblemIndex: "A", RelativeTimeSeconds: 300, Verdict: standings.VerdictOK},
	}
	for _, s := range subs {
		ApplySubmission(state, s, 500)
	}

	if state.TotalPoints != 500 {
		t.Errorf("totalPoints = %v, want 500", state.TotalPoints)
	}
	if state.TotalPenalty != 45 {
		t.Errorf("totalPenalty = %v, want 45 (2*20 + 5)", state.TotalPenalty)
	}
	if state.Problems["A"].RejectCount != 2 {
		t.Errorf("rejectCount = %v, want 2", state.Problems["A"].RejectCount)
	}
}

func TestApplySubmission_FreezeAfterSolve(t *testing.T) {
	state := standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)
	ApplySubmission(state, standings.Submission{ProblemIndex: "A", RelativeTimeSeconds: 100, Verdict: standings.VerdictOK}, 500)
	ApplySubmission(state, standings.Submission{ProblemIndex: "A", RelativeTimeSeconds: 200, Verdict: standings.VerdictWrongAnswer}, 500)
	ApplySubmission(state, standings.Submission{ProblemIndex: "A", RelativeTimeSeconds: 300, Verdict: standings.VerdictOK}, 999)

	ps := state.Problems["A"]
	if ps.Points != 500 || ps.RejectCount != 0 || *ps.SolveTime != 100 {
		t.Errorf("expected frozen state after solve, got %+v", ps)
	}
	if state.TotalPoints != 500 || state.SolvedCount != 1 {
		t.Errorf("solved state mutated by post-solve events: points=%v solved=%v", state.TotalPoints, state.SolvedCount)
	}
}

func TestApplySubmission_Determinism(t *testing.T) {
	build := func() *standings.ParticipantState {
		s := standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)
		ApplySubmission(s, standings.Submission{ProblemIndex: "A", RelativeTimeSeconds: 50, Verdict: standings.VerdictWrongAnswer}, 1)
		ApplySubmission(s, standings.Submission{ProblemIndex: "A", RelativeTimeSeconds: 90, Verdict: standings.VerdictOK}, 500)
		ApplySubmission(s, standings.Submission{ProblemIndex: "B", RelativeTimeSeconds: 120, Verdict: standings.VerdictWrongAnswer}, 250)
		return s
	}

	a, b := build(), build()
	if !a.Equal(b) {
		t.Errorf("expected identical state from identical replay, got %+v vs %+v", a, b)
	}
}

func TestApplySubmission_LastSubmissionTimeAlwaysAdvances(t *testing.T) {
	state := standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)
	ApplySubmission(state, standings.Submission{ProblemIndex: "A", RelativeTimeSeconds: 100, Verdict: standings.VerdictOK}, 1)
	ApplySubmission(state, standings.Submission{ProblemIndex: "A", RelativeTimeSeconds: 300, Verdict: standings.VerdictOK}, 1)

	if state.LastSubmissionTime == nil || *state.LastSubmissionTime != 300 {
		t.Errorf("lastSubmissionTime = %v, want 300", state.LastSubmissionTime)
	}
}

func TestApplyHack(t *testing.T) {
	state := standings.NewParticipantState("alice", standings.ParticipantTypeContestant, false)
	ApplyHack(state, standings.Hack{Handle: "alice", Verdict: standings.HackVerdictSuccessful})
	ApplyHack(state, standings.Hack{Handle: "alice", Verdict: standings.HackVerdictUnsuccessful})
	ApplyHack(state, standings.Hack{Handle: "alice", Verdict: standings.HackVerdictUnsuccessful})

	if state.HackSuccess != 1 || state.HackFail != 2 {
		t.Errorf("hack counters = (%d, %d), want (1, 2)", state.HackSuccess, state.HackFail)
	}
	if state.TotalPoints != 0 || state.TotalPenalty != 0 {
		t.Errorf("hacks must not affect points/penalty, got points=%v penalty=%v", state.TotalPoints, state.TotalPenalty)
	}
}
