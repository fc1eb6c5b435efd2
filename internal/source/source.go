// Package source defines the read-only collaborators the Snapshot Builder
// replays from: a contest's problem set, its submission and hack stream, and
// its metadata. The engine treats all three as pure lookups; nothing in this
// package writes.
package source

import (
	"context"

	"standings-replay-engine/internal/standings"
)

// ContestMetadata is the minimal contest-identity information standingsAt
// reports back to the caller alongside the rows (spec §6).
type ContestMetadata struct {
	ContestID string `json:"contestId"`
	Name      string `json:"name"`
}

// ProblemSource resolves the fixed problem set and per-problem point values
// for a contest.
type ProblemSource interface {
	Problems(ctx context.Context, contestID string) ([]standings.Problem, error)
}

// SubmissionSource resolves the contest's judged-submission stream.
type SubmissionSource interface {
	// Submissions returns every submission for contestID with
	// relativeTimeSeconds in (afterSeconds, uptoSeconds], ascending by
	// relativeTimeSeconds. A caller wanting "all submissions up to T"
	// passes afterSeconds = -1.
	Submissions(ctx context.Context, contestID string, afterSeconds, uptoSeconds int) ([]standings.Submission, error)
}

// HackSource resolves the contest's hack-attempt stream, using the same
// half-open window convention as SubmissionSource.
type HackSource interface {
	Hacks(ctx context.Context, contestID string, afterSeconds, uptoSeconds int) ([]standings.Hack, error)
}

// ContestMetadataSource resolves identifying contest metadata.
type ContestMetadataSource interface {
	Metadata(ctx context.Context, contestID string) (ContestMetadata, bool, error)
}
