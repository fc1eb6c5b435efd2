package filestore

import (
	"context"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

type baseSnapshotStore struct{ fs *FileStore }

func (s *baseSnapshotStore) filePath(contestID string) string {
	return s.fs.path("baseSnapshots", contestID)
}

func (s *baseSnapshotStore) Find(ctx context.Context, q snapshotstore.Query) ([]*standings.BaseSnapshot, error) {
	var out []*standings.BaseSnapshot
	err := withFileLock(s.fs, s.filePath(q.Filter.ContestID), func() error {
		docs, err := readJSONArray[*standings.BaseSnapshot](s.filePath(q.Filter.ContestID))
		if err != nil {
			return err
		}
		var matched []*standings.BaseSnapshot
		for _, d := range docs {
			if matchesTimestamp(q.Filter, d.TimestampSeconds) {
				matched = append(matched, d)
			}
		}
		out = applySortLimit(matched, q, func(d *standings.BaseSnapshot) int { return d.TimestampSeconds })
		return nil
	})
	return out, err
}

func (s *baseSnapshotStore) FindOne(ctx context.Context, q snapshotstore.Query) (*standings.BaseSnapshot, bool, error) {
	q.Limit = 1
	docs, err := s.Find(ctx, q)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

// FindOneAndUpdate inserts doc at (filter.ContestID, *filter.TimestampEq).
// A base snapshot is never updated once created, so the existence check and
// the write share the same file-lock critical section: a document already
// occupying that timestamp is a duplicate, not a target to overwrite,
// matching the unique-index-race contract the document-database backend
// gets from Mongo natively (spec §4.3).
func (s *baseSnapshotStore) FindOneAndUpdate(ctx context.Context, filter snapshotstore.Filter, doc *standings.BaseSnapshot, upsert bool) (*standings.BaseSnapshot, bool, error) {
	if filter.TimestampEq == nil {
		return nil, false, apierrors.NewInput(apierrors.TagInvalidTimestamp, "FindOneAndUpdate requires an equality timestamp filter")
	}

	var result *standings.BaseSnapshot
	var ok bool
	var dup bool
	path := s.filePath(filter.ContestID)
	err := withFileLock(s.fs, path, func() error {
		docs, err := readJSONArray[*standings.BaseSnapshot](path)
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
		s.fs.recordOp("baseSnapshots", "error")
		return nil, false, err
	}
	if dup {
		s.fs.recordOp("baseSnapshots", "duplicate")
		return nil, false, apierrors.ErrDuplicateSnapshot
	}
	if ok {
		s.fs.recordOp("baseSnapshots", "inserted")
	}
	return result, ok, nil
}

func (s *baseSnapshotStore) CountDocuments(ctx context.Context, filter snapshotstore.Filter) (int, error) {
	docs, err := s.Find(ctx, snapshotstore.Query{Filter: filter})
	return len(docs), err
}
