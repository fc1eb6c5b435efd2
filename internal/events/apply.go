// Package events implements the Event Applier (spec §4.1): pure,
// side-effect-free functions that fold one submission or hack into a
// participant state. Nothing here performs I/O; every function is
// deterministic and replayable.
package events

import "standings-replay-engine/internal/standings"

// PenaltyPerReject is the fixed per-reject penalty contribution, in
// minutes. Not configurable at the core level (spec §6).
const PenaltyPerReject = 20

// ApplySubmission folds one submission into state, mutating it in place and
// returning it. A missing problem in the catalogue is non-fatal: the caller
// resolves points before calling (the Snapshot Builder uses the catalogue's
// value, else sub.ProblemPoints, else 1); points here is whatever the
// caller resolved, and sub.ProblemPoints is not read.
func ApplySubmission(state *standings.ParticipantState, sub standings.Submission, points float64) *standings.ParticipantState {
	if state.Problems == nil {
		state.Problems = make(map[string]standings.ProblemState)
	}

	p, exists := state.Problems[sub.ProblemIndex]
	if !exists {
		t := sub.RelativeTimeSeconds
		p = standings.ProblemState{FirstAttemptTime: &t}
	}

	switch {
	case sub.Verdict == standings.VerdictOK && !p.Solved:
		p.Solved = true
		p.Points = points
		solveTime := sub.RelativeTimeSeconds
		p.SolveTime = &solveTime

		state.TotalPoints += points
		state.TotalPenalty += p.RejectCount*PenaltyPerReject + sub.RelativeTimeSeconds/60
		state.SolvedCount++
		state.LastAcTime = maxIntPtr(state.LastAcTime, sub.RelativeTimeSeconds)

	case sub.Verdict != standings.VerdictOK && !p.Solved:
		p.RejectCount++
		if p.FirstAttemptTime == nil {
			t := sub.RelativeTimeSeconds
			p.FirstAttemptTime = &t
		}

	default:
		// verdict = OK after already solved, or verdict != OK after solved:
		// no state change beyond the attempt bookkeeping above.
	}

	state.Problems[sub.ProblemIndex] = p
	state.LastSubmissionTime = maxIntPtr(state.LastSubmissionTime, sub.RelativeTimeSeconds)

	return state
}

// ApplyHack folds one hack attempt into state. The core exposes the
// hackSuccess/hackFail counters only; no scoring impact unless a rule
// module (not part of this package) enables it.
func ApplyHack(state *standings.ParticipantState, hack standings.Hack) *standings.ParticipantState {
	switch hack.Verdict {
	case standings.HackVerdictSuccessful:
		state.HackSuccess++
	case standings.HackVerdictUnsuccessful:
		state.HackFail++
	}
	return state
}

func maxIntPtr(cur *int, candidate int) *int {
	if cur == nil || candidate > *cur {
		v := candidate
		return &v
	}
	return cur
}
