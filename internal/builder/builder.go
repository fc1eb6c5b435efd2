// Package builder implements the Snapshot Builder (spec §4.4): it replays
// submissions and hacks through the Event Applier to construct base
// snapshots (full state at T) and delta snapshots (the participants that
// changed since a prior snapshot), and schedules both against the
// contest's configured base/delta cadence.
package builder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/events"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/source"
	"standings-replay-engine/internal/standings"
)

var tracer = otel.Tracer("snapshot-builder")

// Builder constructs and writes snapshots for one or more contests, reading
// submissions/hacks/problems from the configured sources and writing
// through the configured Store.
type Builder struct {
	problems    source.ProblemSource
	submissions source.SubmissionSource
	hacks       source.HackSource
	store       snapshotstore.Store
	metrics     *metrics.SnapshotMetrics
}

// New wires a Builder to its read-side sources and write-side store.
// Metrics recording is enabled with SetMetrics; by default it is a no-op.
func New(problems source.ProblemSource, submissions source.SubmissionSource, hacks source.HackSource, store snapshotstore.Store) *Builder {
	return &Builder{problems: problems, submissions: submissions, hacks: hacks, store: store}
}

// SetMetrics attaches a SnapshotMetrics recorder; construction calls made
// before this is set are not recorded.
func (b *Builder) SetMetrics(m *metrics.SnapshotMetrics) { b.metrics = m }

func (b *Builder) recordBaseBuild(start time.Time, contestID string, participantCount int) {
	if b.metrics != nil {
		b.metrics.ObserveBaseBuild(time.Since(start), contestID, participantCount)
	}
}

func (b *Builder) recordDeltaBuild(start time.Time, contestID string, changeCount int) {
	if b.metrics != nil {
		b.metrics.ObserveDeltaBuild(time.Since(start), contestID, changeCount)
	}
}

// pointsByIndex loads the contest's problem set into a lookup map, with
// missing or null points defaulting to 1 (spec §4.4 step 1).
func (b *Builder) pointsByIndex(ctx context.Context, contestID string) (map[string]float64, error) {
	problems, err := b.problems.Problems(ctx, contestID)
	if err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "load problems", err)
	}
	out := make(map[string]float64, len(problems))
	for _, p := range problems {
		out[p.Index] = p.PointsOrDefault()
	}
	return out, nil
}

// replayWindow folds every submission and hack in (afterSeconds, uptoSeconds]
// into state, creating participant entries on first appearance. state is
// mutated in place; only an error is returned.
func (b *Builder) replayWindow(ctx context.Context, contestID string, afterSeconds, uptoSeconds int, points map[string]float64, state map[string]*standings.ParticipantState) error {
	subs, err := b.submissions.Submissions(ctx, contestID, afterSeconds, uptoSeconds)
	if err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "load submissions", err)
	}
	for _, sub := range subs {
		p, ok := state[sub.Handle]
		if !ok {
			p = standings.NewParticipantState(sub.Handle, sub.ParticipantType, sub.Ghost)
			state[sub.Handle] = p
		}
		pts, ok := points[sub.ProblemIndex]
		if !ok {
			pts = 1
			if sub.ProblemPoints != nil {
				pts = *sub.ProblemPoints
			}
		}
		events.ApplySubmission(p, sub, pts)
	}

	if b.hacks == nil {
		return nil
	}
	hacks, err := b.hacks.Hacks(ctx, contestID, afterSeconds, uptoSeconds)
	if err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "load hacks", err)
	}
	for _, h := range hacks {
		p, ok := state[h.Handle]
		if !ok {
			p = standings.NewParticipantState(h.Handle, standings.ParticipantTypeContestant, false)
			state[h.Handle] = p
		}
		events.ApplyHack(p, h)
	}
	return nil
}

func sortedHandles(state map[string]*standings.ParticipantState) []string {
	handles := make([]string, 0, len(state))
	for h := range state {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// BulkResult is the partial-success report createSnapshotsBulk returns
// (spec §4.4): the bulk call never aborts on a single timestamp's failure.
type BulkResult struct {
	BaseCreated  int
	DeltaCreated int
	Errors       []error
}

func wrapTimestampErr(t int, err error) error {
	return fmt.Errorf("timestamp %d: %w", t, err)
}
