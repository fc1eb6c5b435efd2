// Package standings holds the entity types shared by every component of the
// replay engine: the event inputs, the per-participant state they fold into,
// and the two snapshot shapes the Snapshot Store persists.
package standings

import "encoding/json"

// Verdict is the judge's decision on a submission. OK denotes acceptance.
type Verdict string

const (
	VerdictOK                    Verdict = "OK"
	VerdictWrongAnswer           Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded     Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictMemoryLimitExceeded   Verdict = "MEMORY_LIMIT_EXCEEDED"
	VerdictRuntimeError          Verdict = "RUNTIME_ERROR"
	VerdictCompilationError      Verdict = "COMPILATION_ERROR"
	VerdictPresentationError     Verdict = "PRESENTATION_ERROR"
	VerdictIdlenessLimitExceeded Verdict = "IDLENESS_LIMIT_EXCEEDED"
	VerdictSecurityViolated      Verdict = "SECURITY_VIOLATED"
	VerdictChallenged            Verdict = "CHALLENGED"
	VerdictSkipped               Verdict = "SKIPPED"
	VerdictRejected              Verdict = "REJECTED"
	VerdictFailed                Verdict = "FAILED"
	VerdictPartial               Verdict = "PARTIAL"
	VerdictTesting               Verdict = "TESTING"
)

// ParticipantType classifies how a handle took part in the contest.
type ParticipantType string

const (
	ParticipantTypeContestant        ParticipantType = "CONTESTANT"
	ParticipantTypeVirtual           ParticipantType = "VIRTUAL"
	ParticipantTypePractice          ParticipantType = "PRACTICE"
	ParticipantTypeManager           ParticipantType = "MANAGER"
	ParticipantTypeOutOfCompetition  ParticipantType = "OUT_OF_COMPETITION"
)

// IsOfficial reports whether a participant of this type counts toward the
// official (isUnofficial = false) standings.
func (t ParticipantType) IsOfficial() bool {
	return t == ParticipantTypeContestant
}

// HackVerdict is the outcome of a hack attempt against another participant.
type HackVerdict string

const (
	HackVerdictSuccessful   HackVerdict = "SUCCESSFUL"
	HackVerdictUnsuccessful HackVerdict = "UNSUCCESSFUL"
)

// Problem is an immutable input describing one contest problem.
type Problem struct {
	Index  string   `json:"index" bson:"index"`
	Points *float64 `json:"points,omitempty" bson:"points,omitempty"`
}

// PointsOrDefault returns Points, defaulting to 1 when nil or absent.
func (p Problem) PointsOrDefault() float64 {
	if p.Points == nil {
		return 1
	}
	return *p.Points
}

// Submission is one immutable judged event in the contest's submission
// stream. ID is the submission's original identifier; it is used only to
// break ties between submissions sharing a RelativeTimeSeconds and
// ProblemIndex for the same participant (spec §9).
type Submission struct {
	ID                  int64           `json:"id" bson:"id"`
	ProblemIndex        string          `json:"problemIndex" bson:"problemIndex"`
	ProblemPoints       *float64        `json:"problemPoints,omitempty" bson:"problemPoints,omitempty"`
	Handle              string          `json:"handle" bson:"handle"`
	ParticipantType     ParticipantType `json:"participantType" bson:"participantType"`
	Ghost               bool            `json:"ghost,omitempty" bson:"ghost,omitempty"`
	RelativeTimeSeconds int             `json:"relativeTimeSeconds" bson:"relativeTimeSeconds"`
	Verdict             Verdict         `json:"verdict" bson:"verdict"`
}

// Hack is an immutable hack-attempt event. The engine tracks counters only;
// see ApplyHack.
type Hack struct {
	ID                  int64       `json:"id" bson:"id"`
	Handle              string      `json:"handle" bson:"handle"`
	Verdict             HackVerdict `json:"verdict" bson:"verdict"`
	RelativeTimeSeconds int         `json:"relativeTimeSeconds" bson:"relativeTimeSeconds"`
}

// ProblemState is a participant's progress on a single problem. Once Solved
// is true, Points, SolveTime, and RejectCount are frozen.
type ProblemState struct {
	Solved           bool    `json:"solved" bson:"solved"`
	Points           float64 `json:"points" bson:"points"`
	RejectCount      int     `json:"rejectCount" bson:"rejectCount"`
	SolveTime        *int    `json:"solveTime,omitempty" bson:"solveTime,omitempty"`
	FirstAttemptTime *int    `json:"firstAttemptTime,omitempty" bson:"firstAttemptTime,omitempty"`
}

// Clone returns a deep copy of the problem state.
func (p ProblemState) Clone() ProblemState {
	out := p
	if p.SolveTime != nil {
		t := *p.SolveTime
		out.SolveTime = &t
	}
	if p.FirstAttemptTime != nil {
		t := *p.FirstAttemptTime
		out.FirstAttemptTime = &t
	}
	return out
}

// ParticipantState is the full folded state of one participant at some
// relative time T. It is created on the participant's first submission and
// mutated by every subsequent event.
type ParticipantState struct {
	Handle              string                  `json:"handle" bson:"handle"`
	ParticipantType     ParticipantType         `json:"participantType" bson:"participantType"`
	Ghost               bool                    `json:"ghost,omitempty" bson:"ghost,omitempty"`
	Problems            map[string]ProblemState `json:"problems" bson:"problems"`
	TotalPoints         float64                 `json:"totalPoints" bson:"totalPoints"`
	TotalPenalty        int                     `json:"totalPenalty" bson:"totalPenalty"`
	SolvedCount         int                     `json:"solvedCount" bson:"solvedCount"`
	LastAcTime          *int                    `json:"lastAcTime,omitempty" bson:"lastAcTime,omitempty"`
	LastSubmissionTime  *int                    `json:"lastSubmissionTime,omitempty" bson:"lastSubmissionTime,omitempty"`
	HackSuccess         int                     `json:"hackSuccess" bson:"hackSuccess"`
	HackFail            int                     `json:"hackFail" bson:"hackFail"`
}

// NewParticipantState creates the initial (empty) state for a handle's
// first submission.
func NewParticipantState(handle string, pType ParticipantType, ghost bool) *ParticipantState {
	return &ParticipantState{
		Handle:          handle,
		ParticipantType: pType,
		Ghost:           ghost,
		Problems:        make(map[string]ProblemState),
	}
}

// IsUnofficial reports whether this participant is excluded from the
// official-only standings view. isUnofficial = (participantType != CONTESTANT).
func (p *ParticipantState) IsUnofficial() bool {
	return !p.ParticipantType.IsOfficial()
}

// Clone returns a deep copy of the participant state; snapshots own their
// embedded participant payloads exclusively and never share them.
func (p *ParticipantState) Clone() *ParticipantState {
	if p == nil {
		return nil
	}
	out := *p
	out.Problems = make(map[string]ProblemState, len(p.Problems))
	for idx, ps := range p.Problems {
		out.Problems[idx] = ps.Clone()
	}
	if p.LastAcTime != nil {
		t := *p.LastAcTime
		out.LastAcTime = &t
	}
	if p.LastSubmissionTime != nil {
		t := *p.LastSubmissionTime
		out.LastSubmissionTime = &t
	}
	return &out
}

// Equal reports whether two participant states have identical observable
// fields (points, penalty, solved count, hack counters, and the full
// problems map). Used by the Snapshot Builder's precise diff (spec §4.4).
func (p *ParticipantState) Equal(other *ParticipantState) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Handle != other.Handle ||
		p.ParticipantType != other.ParticipantType ||
		p.Ghost != other.Ghost ||
		p.TotalPoints != other.TotalPoints ||
		p.TotalPenalty != other.TotalPenalty ||
		p.SolvedCount != other.SolvedCount ||
		p.HackSuccess != other.HackSuccess ||
		p.HackFail != other.HackFail {
		return false
	}
	if !intPtrEqual(p.LastAcTime, other.LastAcTime) || !intPtrEqual(p.LastSubmissionTime, other.LastSubmissionTime) {
		return false
	}
	if len(p.Problems) != len(other.Problems) {
		return false
	}
	for idx, ps := range p.Problems {
		os, ok := other.Problems[idx]
		if !ok ||
			ps.Solved != os.Solved ||
			ps.Points != os.Points ||
			ps.RejectCount != os.RejectCount ||
			!intPtrEqual(ps.SolveTime, os.SolveTime) ||
			!intPtrEqual(ps.FirstAttemptTime, os.FirstAttemptTime) {
			return false
		}
	}
	return true
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// BaseSnapshot is a full participant-state store for all participants of one
// contest at one relative time T.
type BaseSnapshot struct {
	ContestID        string              `json:"contestId" bson:"contestId"`
	TimestampSeconds int                 `json:"timestampSeconds" bson:"timestampSeconds"`
	Participants     []*ParticipantState `json:"participants" bson:"participants"`
	ParticipantCount int                 `json:"participantCount" bson:"participantCount"`
}

// DeltaChangeOp names the kind of change a delta snapshot records for a
// participant. There is no tombstone op: the engine does not support
// participant removal.
type DeltaChangeOp string

const (
	DeltaChangeInsert DeltaChangeOp = "INSERT"
	DeltaChangeUpdate DeltaChangeOp = "UPDATE"
)

// DeltaChange carries the entire new state for one changed participant —
// not a field patch — so applying it is always an overwrite (spec §9).
type DeltaChange struct {
	Handle string            `json:"handle" bson:"handle"`
	Op     DeltaChangeOp     `json:"op" bson:"op"`
	State  *ParticipantState `json:"state" bson:"state"`
}

// DeltaSnapshot is an incremental record of the participants whose state
// changed since the snapshot it chains from.
type DeltaSnapshot struct {
	ContestID             string        `json:"contestId" bson:"contestId"`
	TimestampSeconds      int           `json:"timestampSeconds" bson:"timestampSeconds"`
	BaseSnapshotTimestamp int           `json:"baseSnapshotTimestamp" bson:"baseSnapshotTimestamp"`
	Changes               []DeltaChange `json:"changes" bson:"changes"`
	ChangeCount           int           `json:"changeCount" bson:"changeCount"`
}

// Member identifies one member of a standings row's party. The engine only
// ever produces single-member (individual) parties.
type Member struct {
	Handle string `json:"handle"`
}

// Party is the external standings-row representation of a participant.
type Party struct {
	Members         []Member        `json:"members"`
	ParticipantType ParticipantType `json:"participantType"`
	Ghost           bool            `json:"ghost"`
}

// ProblemResult is one problem's entry within a standings row.
type ProblemResult struct {
	ProblemIndex          string  `json:"problemIndex"`
	Points                float64 `json:"points"`
	RejectedAttemptCount  int     `json:"rejectedAttemptCount"`
	Type                  string  `json:"type"`
	BestSubmissionTimeSeconds *int `json:"bestSubmissionTimeSeconds,omitempty"`
}

// Row is one ranked, paginated standings entry — the shape standingsAt
// returns (spec §6).
type Row struct {
	Party                    Party           `json:"party"`
	Rank                     int             `json:"rank"`
	Points                   float64         `json:"points"`
	Penalty                  int             `json:"penalty"`
	SuccessfulHackCount      int             `json:"successfulHackCount"`
	UnsuccessfulHackCount    int             `json:"unsuccessfulHackCount"`
	ProblemResults           []ProblemResult `json:"problemResults"`
}

// ToRow converts a folded participant state into its external standings-row
// shape. Rank must be assigned by the caller (the Ranker).
func ToRow(p *ParticipantState, problemOrder []string, rank int) Row {
	results := make([]ProblemResult, 0, len(problemOrder))
	for _, idx := range problemOrder {
		ps, ok := p.Problems[idx]
		if !ok {
			continue
		}
		var best *int
		if ps.SolveTime != nil {
			t := *ps.SolveTime
			best = &t
		}
		results = append(results, ProblemResult{
			ProblemIndex:             idx,
			Points:                   ps.Points,
			RejectedAttemptCount:     ps.RejectCount,
			Type:                     "FINAL",
			BestSubmissionTimeSeconds: best,
		})
	}
	return Row{
		Party: Party{
			Members:         []Member{{Handle: p.Handle}},
			ParticipantType: p.ParticipantType,
			Ghost:           p.Ghost,
		},
		Rank:                  rank,
		Points:                p.TotalPoints,
		Penalty:               p.TotalPenalty,
		SuccessfulHackCount:   p.HackSuccess,
		UnsuccessfulHackCount: p.HackFail,
		ProblemResults:        results,
	}
}

// problemsWire is the tolerant on-disk/wire representation of the Problems
// map: implementations must normalize to an object on write (per spec §9)
// but tolerate reading either an object or an array of {index, state} pairs
// written by an older or foreign producer.
type problemsWire struct {
	Index string       `json:"index"`
	State ProblemState `json:"state"`
}

// MarshalJSON normalizes ParticipantState.Problems to an object keyed by
// problem index.
func (p ParticipantState) MarshalJSON() ([]byte, error) {
	type alias ParticipantState
	a := alias(p)
	if a.Problems == nil {
		a.Problems = map[string]ProblemState{}
	}
	return json.Marshal(a)
}

// UnmarshalJSON accepts the Problems field as either an object-of-index or
// an array of {index, state} pairs, normalizing to the in-memory map shape.
func (p *ParticipantState) UnmarshalJSON(data []byte) error {
	type alias ParticipantState
	aux := struct {
		Problems json.RawMessage `json:"problems"`
		*alias
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if p.Problems == nil {
		p.Problems = make(map[string]ProblemState)
	}
	if len(aux.Problems) == 0 {
		return nil
	}

	var asObject map[string]ProblemState
	if err := json.Unmarshal(aux.Problems, &asObject); err == nil {
		p.Problems = asObject
		return nil
	}

	var asArray []problemsWire
	if err := json.Unmarshal(aux.Problems, &asArray); err != nil {
		return err
	}
	p.Problems = make(map[string]ProblemState, len(asArray))
	for _, entry := range asArray {
		p.Problems[entry.Index] = entry.State
	}
	return nil
}
