// Package snapshotstore defines the abstract collection layer the engine
// reads and writes through (spec §4.3): two named collections per contest,
// baseSnapshots and deltaSnapshots, plus one auxiliary collection,
// standingsState. Two backends implement Store — a document-database
// backend (mongostore) and a JSON-file-per-contest backend (filestore) —
// and must be semantically equivalent: any divergence in filter, sort,
// projection, or tie ordering between them is a bug (spec §9).
package snapshotstore

import (
	"context"

	"standings-replay-engine/internal/standings"
)

// SortOrder selects ascending or descending ordering by timestampSeconds.
type SortOrder int

const (
	SortNone SortOrder = iota
	SortAscending
	SortDescending
)

// Filter is the minimal filter language the engine requires: equality on
// contestId/handle/timestampSeconds plus range operators on
// timestampSeconds. A nil pointer field means "unconstrained".
type Filter struct {
	ContestID string

	Handle *string

	TimestampEq  *int
	TimestampLT  *int
	TimestampLTE *int
	TimestampGT  *int
	TimestampGTE *int
}

// Query composes a Filter with sort/limit/projection.
type Query struct {
	Filter Filter
	Sort   SortOrder
	Limit  int      // 0 means unlimited
	Fields []string // requested projection; neither shipped backend applies it, both return whole documents
}

// BulkSummary reports the outcome of a BulkWrite call.
type BulkSummary struct {
	Upserted int
	Modified int
	Errors   []error
}

// StandingsStateWriteOp is one upsert within a StandingsStateStore.BulkWrite
// call: the document identified by (ContestID, Handle) is replaced wholesale.
type StandingsStateWriteOp struct {
	ContestID string
	Handle    string
	Document  *standings.ParticipantState
}

// BaseSnapshotStore is the baseSnapshots collection for one or more
// contests, unique on (contestId, timestampSeconds).
type BaseSnapshotStore interface {
	Find(ctx context.Context, q Query) ([]*standings.BaseSnapshot, error)
	FindOne(ctx context.Context, q Query) (*standings.BaseSnapshot, bool, error)
	// FindOneAndUpdate inserts doc at (filter.ContestID, *filter.TimestampEq).
	// A base snapshot is never replaced: a document already occupying the
	// timestamp yields apierrors.ErrDuplicateSnapshot. The bool result is
	// true when doc was inserted, false when upsert is false and nothing
	// matched (the returned document is nil in that case).
	FindOneAndUpdate(ctx context.Context, filter Filter, doc *standings.BaseSnapshot, upsert bool) (*standings.BaseSnapshot, bool, error)
	CountDocuments(ctx context.Context, filter Filter) (int, error)
}

// DeltaSnapshotStore is the deltaSnapshots collection, unique on
// (contestId, timestampSeconds).
type DeltaSnapshotStore interface {
	Find(ctx context.Context, q Query) ([]*standings.DeltaSnapshot, error)
	FindOne(ctx context.Context, q Query) (*standings.DeltaSnapshot, bool, error)
	FindOneAndUpdate(ctx context.Context, filter Filter, doc *standings.DeltaSnapshot, upsert bool) (*standings.DeltaSnapshot, bool, error)
	CountDocuments(ctx context.Context, filter Filter) (int, error)
}

// StandingsStateStore is the standingsState auxiliary collection: the
// current/initialized state from a full replay, unique on
// (contestId, handle).
type StandingsStateStore interface {
	Find(ctx context.Context, contestID string) ([]*standings.ParticipantState, error)
	FindOne(ctx context.Context, contestID, handle string) (*standings.ParticipantState, bool, error)
	FindOneAndUpdate(ctx context.Context, contestID, handle string, doc *standings.ParticipantState, upsert bool) (*standings.ParticipantState, bool, error)
	BulkWrite(ctx context.Context, ops []StandingsStateWriteOp) (BulkSummary, error)
	CountDocuments(ctx context.Context, contestID string) (int, error)
}

// Store is the full abstract collection layer for one backend, shared
// across all contests it hosts.
type Store interface {
	BaseSnapshots() BaseSnapshotStore
	DeltaSnapshots() DeltaSnapshotStore
	StandingsState() StandingsStateStore
}
