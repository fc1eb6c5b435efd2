package filestore

import (
	"context"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

type deltaSnapshotStore struct{ fs *FileStore }

func (s *deltaSnapshotStore) filePath(contestID string) string {
	return s.fs.path("deltaSnapshots", contestID)
}

func (s *deltaSnapshotStore) Find(ctx context.Context, q snapshotstore.Query) ([]*standings.DeltaSnapshot, error) {
	var out []*standings.DeltaSnapshot
	err := withFileLock(s.fs, s.filePath(q.Filter.ContestID), func() error {
		docs, err := readJSONArray[*standings.DeltaSnapshot](s.filePath(q.Filter.ContestID))
		if err != nil {
			return err
		}
		var matched []*standings.DeltaSnapshot
		for _, d := range docs {
			if matchesTimestamp(q.Filter, d.TimestampSeconds) {
				matched = append(matched, d)
			}
		}
		out = applySortLimit(matched, q, func(d *standings.DeltaSnapshot) int { return d.TimestampSeconds })
		return nil
	})
	return out, err
}

func (s *deltaSnapshotStore) FindOne(ctx context.Context, q snapshotstore.Query) (*standings.DeltaSnapshot, bool, error) {
	q.Limit = 1
	docs, err := s.Find(ctx, q)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

// FindOneAndUpdate inserts doc at (filter.ContestID, *filter.TimestampEq).
// A delta snapshot is never updated once created, so the existence check
// and the write share the same file-lock critical section: a document
// already occupying that timestamp is a duplicate, not a target to
// overwrite (spec §4.3; see baseSnapshotStore.FindOneAndUpdate).
func (s *deltaSnapshotStore) FindOneAndUpdate(ctx context.Context, filter snapshotstore.Filter, doc *standings.DeltaSnapshot, upsert bool) (*standings.DeltaSnapshot, bool, error) {
	if filter.TimestampEq == nil {
		return nil, false, apierrors.NewInput(apierrors.TagInvalidTimestamp, "FindOneAndUpdate requires an equality timestamp filter")
	}

	var result *standings.DeltaSnapshot
	var ok bool
	var dup bool
	path := s.filePath(filter.ContestID)
	err := withFileLock(s.fs, path, func() error {
		docs, err := readJSONArray[*standings.DeltaSnapshot](path)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if d.TimestampSeconds == *filter.TimestampEq {
				dup = true
				return nil
			}
		}
		if !upsert {
			return nil
		}
		docs = append(docs, doc)
		result = doc
		ok = true
		return writeJSONArrayAtomic(path, docs)
	})
	if err != nil {
		s.fs.recordOp("deltaSnapshots", "error")
		return nil, false, err
	}
	if dup {
		s.fs.recordOp("deltaSnapshots", "duplicate")
		return nil, false, apierrors.ErrDuplicateSnapshot
	}
	if ok {
		s.fs.recordOp("deltaSnapshots", "inserted")
	}
	return result, ok, nil
}

func (s *deltaSnapshotStore) CountDocuments(ctx context.Context, filter snapshotstore.Filter) (int, error) {
	docs, err := s.Find(ctx, snapshotstore.Query{Filter: filter})
	return len(docs), err
}
