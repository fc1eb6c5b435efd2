// Package query implements the Query Engine (spec §4.5): it answers
// standingsAt by loading the nearest base snapshot plus the delta chain
// after it, folding them into a working participant map, ranking, and
// paginating — and validate, which cross-checks a snapshot-backed answer
// against an independent full replay.
package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/builder"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/ranker"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/source"
	"standings-replay-engine/internal/standings"
)

var tracer = otel.Tracer("query-engine")

// Engine answers standingsAt and validate against a Store, falling back to
// the Builder for a full replay when no base snapshot exists yet (spec
// §4.5 step 1's legacy path) and for validate's independent reference.
type Engine struct {
	store    snapshotstore.Store
	metadata source.ContestMetadataSource
	problems source.ProblemSource
	builder  *builder.Builder
	metrics  *metrics.QueryMetrics
}

// New wires a query Engine to its store, metadata source, and the Builder
// used for the base-snapshot fallback and for validate's reference replay.
func New(store snapshotstore.Store, metadata source.ContestMetadataSource, problems source.ProblemSource, b *builder.Builder) *Engine {
	return &Engine{store: store, metadata: metadata, problems: problems, builder: b}
}

// SetMetrics attaches a QueryMetrics recorder; calls made before this is set
// are not recorded.
func (e *Engine) SetMetrics(m *metrics.QueryMetrics) { e.metrics = m }

// Result is the {contest, problems, rows[]} shape standingsAt returns
// (spec §6).
type Result struct {
	Contest  source.ContestMetadata  `json:"contest"`
	Problems []standings.Problem     `json:"problems"`
	Rows     []standings.Row         `json:"rows"`
}

// StandingsAt answers the engine's central query (spec §4.5). An unknown
// contest yields an empty Result rather than an error; rankFrom/rankTo
// violations surface as InputErrors.
func (e *Engine) StandingsAt(ctx context.Context, contestID string, t, rankFrom, rankTo int, includeUnofficial bool) (result Result, err error) {
	ctx, span := tracer.Start(ctx, "query.standings_at")
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
	if rankFrom < 1 {
		return Result{}, apierrors.NewInputWrap(apierrors.TagInvalidRankRange, apierrors.ErrInvalidRank, "rankFrom must be >= 1, got %d", rankFrom)
	}
	if rankTo > 0 && rankTo < rankFrom {
		return Result{}, apierrors.NewInputWrap(apierrors.TagInvalidRankRange, apierrors.ErrInvalidRank, "rankTo (%d) must be >= rankFrom (%d)", rankTo, rankFrom)
	}

	meta, found, err := e.metadata.Metadata(ctx, contestID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, nil
	}

	state, deltasApplied, err := e.stateAt(ctx, contestID, t)
	if err != nil {
		return Result{}, err
	}
	if e.metrics != nil {
		defer func() { e.metrics.ObserveStandingsAt(time.Since(start), contestID, deltasApplied) }()
	}

	problems, err := e.problems.Problems(ctx, contestID)
	if err != nil {
		return Result{}, err
	}
	problemOrder := make([]string, len(problems))
	for i, p := range problems {
		problemOrder[i] = p.Index
	}

	participants := make([]*standings.ParticipantState, 0, len(state))
	for _, p := range state {
		if !includeUnofficial && p.IsUnofficial() {
			continue
		}
		participants = append(participants, p)
	}

	ranked := ranker.SortAndRank(participants)
	page, err := ranker.Paginate(ranked, rankFrom, rankTo)
	if err != nil {
		return Result{}, err
	}

	rows := make([]standings.Row, len(page))
	for i, r := range page {
		rows[i] = standings.ToRow(r.State, problemOrder, r.Rank)
	}

	return Result{Contest: meta, Problems: problems, Rows: rows}, nil
}

// stateAt locates the latest base snapshot at-or-before t, applies the
// delta chain strictly after it up to and including t, and returns the
// resulting working map (spec §4.5 steps 1-4). With no base snapshot at or
// before t it falls back to a full replay via the Builder (the "legacy path");
// this costs a full submission-stream scan instead of O(deltas).
func (e *Engine) stateAt(ctx context.Context, contestID string, t int) (map[string]*standings.ParticipantState, int, error) {
	base, found, err := e.store.BaseSnapshots().FindOne(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampLTE: &t},
		Sort:   snapshotstore.SortDescending,
	})
	if err != nil {
		return nil, 0, err
	}
	if !found {
		state, err := e.replayFallback(ctx, contestID, t)
		return state, 0, err
	}

	state := make(map[string]*standings.ParticipantState, len(base.Participants))
	for _, p := range base.Participants {
		state[p.Handle] = p.Clone()
	}

	deltas, err := e.store.DeltaSnapshots().Find(ctx, snapshotstore.Query{
		Filter: snapshotstore.Filter{ContestID: contestID, TimestampGT: &base.TimestampSeconds, TimestampLTE: &t},
		Sort:   snapshotstore.SortAscending,
	})
	if err != nil {
		return nil, 0, err
	}
	for _, d := range deltas {
		for _, change := range d.Changes {
			state[change.Handle] = change.State.Clone()
		}
	}
	return state, len(deltas), nil
}

// replayFallback builds the state map at t by constructing a throwaway base
// snapshot in memory, without persisting it, for use when no base snapshot
// exists at or before t.
func (e *Engine) replayFallback(ctx context.Context, contestID string, t int) (map[string]*standings.ParticipantState, error) {
	snap, err := e.builder.ReplayWithoutPersisting(ctx, contestID, t)
	if err != nil {
		return nil, err
	}
	state := make(map[string]*standings.ParticipantState, len(snap.Participants))
	for _, p := range snap.Participants {
		state[p.Handle] = p
	}
	return state, nil
}
