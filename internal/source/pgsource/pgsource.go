// Package pgsource implements the source interfaces against a Postgres
// submission/problem/contest-metadata database via pgx, for deployments
// where the judge pipeline's own store is the engine's source of truth
// rather than a pre-extracted fixture.
package pgsource

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/source"
	"standings-replay-engine/internal/standings"
	"standings-replay-engine/pkg/database"
)

// Source reads problems, submissions, hacks, and contest metadata from a
// Postgres database through a shared connection pool.
type Source struct {
	db *database.DB
}

// New wraps an existing pool-backed connection.
func New(db *database.DB) *Source {
	return &Source{db: db}
}

func (s *Source) Problems(ctx context.Context, contestID string) ([]standings.Problem, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT index, points
		FROM contest_problems
		WHERE contest_id = $1
		ORDER BY index ASC
	`, contestID)
	if err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "query contest_problems", err)
	}
	defer rows.Close()

	var out []standings.Problem
	for rows.Next() {
		var p standings.Problem
		if err := rows.Scan(&p.Index, &p.Points); err != nil {
			return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "scan contest_problems row", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Source) Submissions(ctx context.Context, contestID string, afterSeconds, uptoSeconds int) ([]standings.Submission, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, problem_index, problem_points, handle, participant_type, ghost, relative_time_seconds, verdict
		FROM contest_submissions
		WHERE contest_id = $1 AND relative_time_seconds > $2 AND relative_time_seconds <= $3
		ORDER BY relative_time_seconds ASC, id ASC
	`, contestID, afterSeconds, uptoSeconds)
	if err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "query contest_submissions", err)
	}
	defer rows.Close()

	var out []standings.Submission
	for rows.Next() {
		var sub standings.Submission
		if err := rows.Scan(&sub.ID, &sub.ProblemIndex, &sub.ProblemPoints, &sub.Handle, &sub.ParticipantType, &sub.Ghost, &sub.RelativeTimeSeconds, &sub.Verdict); err != nil {
			return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "scan contest_submissions row", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Source) Hacks(ctx context.Context, contestID string, afterSeconds, uptoSeconds int) ([]standings.Hack, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, handle, verdict, relative_time_seconds
		FROM contest_hacks
		WHERE contest_id = $1 AND relative_time_seconds > $2 AND relative_time_seconds <= $3
		ORDER BY relative_time_seconds ASC, id ASC
	`, contestID, afterSeconds, uptoSeconds)
	if err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "query contest_hacks", err)
	}
	defer rows.Close()

	var out []standings.Hack
	for rows.Next() {
		var h standings.Hack
		if err := rows.Scan(&h.ID, &h.Handle, &h.Verdict, &h.RelativeTimeSeconds); err != nil {
			return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "scan contest_hacks row", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Source) Metadata(ctx context.Context, contestID string) (source.ContestMetadata, bool, error) {
	var meta source.ContestMetadata
	meta.ContestID = contestID
	err := s.db.Pool.QueryRow(ctx, `SELECT title FROM contests WHERE id = $1`, contestID).Scan(&meta.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return source.ContestMetadata{}, false, nil
		}
		return source.ContestMetadata{}, false, apierrors.NewStorage(apierrors.TagStoreFailure, fmt.Sprintf("query contest metadata for %q", contestID), err)
	}
	return meta, true, nil
}
