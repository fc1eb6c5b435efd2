package query

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"standings-replay-engine/internal/standings"
)

// ParticipantDiff reports a single field of a single handle's state
// disagreeing between the independent reference replay (Expected) and the
// snapshot-backed answer (Got), or a handle present in only one of the two.
type ParticipantDiff struct {
	Handle   string `json:"handle"`
	Field    string `json:"field"`
	Expected any    `json:"expected"`
	Got      any    `json:"got"`
}

// ValidationReport is the diff report validate returns (spec §6): Matches
// is true iff the snapshot chain and a full reference replay agree on
// every participant's state at T, field by field.
type ValidationReport struct {
	ContestID        string             `json:"contestId"`
	TimestampSeconds int                `json:"timestampSeconds"`
	Matches          bool               `json:"matches"`
	Differences      []ParticipantDiff  `json:"differences"`
}

// Validate independently replays the contest's full submission/hack stream
// up to T and compares the result, handle by handle and field by field,
// against the state the snapshot chain produces for the same T. Disagreement
// indicates a bug in snapshot construction, not in the data itself — the
// replay path shares no code with stateAt's snapshot traversal.
func (e *Engine) Validate(ctx context.Context, contestID string, t int) (ValidationReport, error) {
	ctx, span := tracer.Start(ctx, "query.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("contest.id", contestID),
		attribute.Int("snapshot.timestamp_seconds", t),
	)

	start := time.Now()
	report := ValidationReport{ContestID: contestID, TimestampSeconds: t}

	snapshotState, _, err := e.stateAt(ctx, contestID, t)
	if err != nil {
		span.RecordError(err)
		return ValidationReport{}, err
	}

	reference, err := e.builder.ReplayWithoutPersisting(ctx, contestID, t)
	if err != nil {
		span.RecordError(err)
		return ValidationReport{}, err
	}
	referenceState := make(map[string]*standings.ParticipantState, len(reference.Participants))
	for _, p := range reference.Participants {
		referenceState[p.Handle] = p
	}

	seen := make(map[string]bool, len(snapshotState)+len(referenceState))
	for h := range snapshotState {
		seen[h] = true
	}
	for h := range referenceState {
		seen[h] = true
	}

	for h := range seen {
		snap, snapOK := snapshotState[h]
		ref, refOK := referenceState[h]
		switch {
		case refOK && snapOK:
			report.Differences = append(report.Differences, diffParticipant(h, ref, snap)...)
		case refOK && !snapOK:
			report.Differences = append(report.Differences, ParticipantDiff{Handle: h, Field: "presence", Expected: "present", Got: "missing"})
		case snapOK && !refOK:
			report.Differences = append(report.Differences, ParticipantDiff{Handle: h, Field: "presence", Expected: "missing", Got: "present"})
		}
	}
	report.Matches = len(report.Differences) == 0

	if e.metrics != nil {
		e.metrics.ObserveValidate(time.Since(start), contestID, len(report.Differences))
	}
	span.SetAttributes(
		attribute.Bool("validate.matches", report.Matches),
		attribute.Int("validate.difference_count", len(report.Differences)),
	)
	return report, nil
}

// diffParticipant compares the reference replay's state for handle
// (expected) against the snapshot chain's state for the same handle (got),
// emitting one ParticipantDiff per disagreeing field.
func diffParticipant(handle string, expected, got *standings.ParticipantState) []ParticipantDiff {
	var diffs []ParticipantDiff
	add := func(field string, exp, g any) {
		diffs = append(diffs, ParticipantDiff{Handle: handle, Field: field, Expected: exp, Got: g})
	}

	if expected.ParticipantType != got.ParticipantType {
		add("participantType", expected.ParticipantType, got.ParticipantType)
	}
	if expected.Ghost != got.Ghost {
		add("ghost", expected.Ghost, got.Ghost)
	}
	if expected.TotalPoints != got.TotalPoints {
		add("totalPoints", expected.TotalPoints, got.TotalPoints)
	}
	if expected.TotalPenalty != got.TotalPenalty {
		add("totalPenalty", expected.TotalPenalty, got.TotalPenalty)
	}
	if expected.SolvedCount != got.SolvedCount {
		add("solvedCount", expected.SolvedCount, got.SolvedCount)
	}
	if !intPtrEqual(expected.LastAcTime, got.LastAcTime) {
		add("lastAcTime", intPtrValue(expected.LastAcTime), intPtrValue(got.LastAcTime))
	}
	if !intPtrEqual(expected.LastSubmissionTime, got.LastSubmissionTime) {
		add("lastSubmissionTime", intPtrValue(expected.LastSubmissionTime), intPtrValue(got.LastSubmissionTime))
	}
	if expected.HackSuccess != got.HackSuccess {
		add("hackSuccess", expected.HackSuccess, got.HackSuccess)
	}
	if expected.HackFail != got.HackFail {
		add("hackFail", expected.HackFail, got.HackFail)
	}

	indices := make(map[string]bool, len(expected.Problems)+len(got.Problems))
	for idx := range expected.Problems {
		indices[idx] = true
	}
	for idx := range got.Problems {
		indices[idx] = true
	}
	for idx := range indices {
		e, eOK := expected.Problems[idx]
		g, gOK := got.Problems[idx]
		switch {
		case eOK && !gOK:
			add(fmt.Sprintf("problems.%s", idx), e, nil)
		case gOK && !eOK:
			add(fmt.Sprintf("problems.%s", idx), nil, g)
		default:
			diffs = append(diffs, diffProblemState(handle, idx, e, g)...)
		}
	}
	return diffs
}

// diffProblemState compares one problem index's state field by field.
func diffProblemState(handle, index string, expected, got standings.ProblemState) []ParticipantDiff {
	var diffs []ParticipantDiff
	add := func(field string, exp, g any) {
		diffs = append(diffs, ParticipantDiff{Handle: handle, Field: fmt.Sprintf("problems.%s.%s", index, field), Expected: exp, Got: g})
	}
	if expected.Solved != got.Solved {
		add("solved", expected.Solved, got.Solved)
	}
	if expected.Points != got.Points {
		add("points", expected.Points, got.Points)
	}
	if expected.RejectCount != got.RejectCount {
		add("rejectCount", expected.RejectCount, got.RejectCount)
	}
	if !intPtrEqual(expected.SolveTime, got.SolveTime) {
		add("solveTime", intPtrValue(expected.SolveTime), intPtrValue(got.SolveTime))
	}
	if !intPtrEqual(expected.FirstAttemptTime, got.FirstAttemptTime) {
		add("firstAttemptTime", intPtrValue(expected.FirstAttemptTime), intPtrValue(got.FirstAttemptTime))
	}
	return diffs
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrValue(a *int) any {
	if a == nil {
		return nil
	}
	return *a
}
