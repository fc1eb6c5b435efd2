package filestore

import (
	"context"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

type standingsStateStore struct{ fs *FileStore }

func (s *standingsStateStore) filePath(contestID string) string {
	return s.fs.path("standingsState", contestID)
}

func (s *standingsStateStore) Find(ctx context.Context, contestID string) ([]*standings.ParticipantState, error) {
	var out []*standings.ParticipantState
	err := withFileLock(s.fs, s.filePath(contestID), func() error {
		docs, err := readJSONArray[*standings.ParticipantState](s.filePath(contestID))
		out = docs
		return err
	})
	return out, err
}

func (s *standingsStateStore) FindOne(ctx context.Context, contestID, handle string) (*standings.ParticipantState, bool, error) {
	docs, err := s.Find(ctx, contestID)
	if err != nil {
		return nil, false, err
	}
	for _, d := range docs {
		if d.Handle == handle {
			return d, true, nil
		}
	}
	return nil, false, nil
}

func (s *standingsStateStore) FindOneAndUpdate(ctx context.Context, contestID, handle string, doc *standings.ParticipantState, upsert bool) (*standings.ParticipantState, bool, error) {
	var result *standings.ParticipantState
	var ok bool
	var outcome string
	path := s.filePath(contestID)
	err := withFileLock(s.fs, path, func() error {
		docs, err := readJSONArray[*standings.ParticipantState](path)
		if err != nil {
			return err
		}
		for i, d := range docs {
			if d.Handle == handle {
				docs[i] = doc
				result = doc
				ok = true
				outcome = "updated"
				return writeJSONArrayAtomic(path, docs)
			}
		}
		if !upsert {
			return nil
		}
		docs = append(docs, doc)
		result = doc
		ok = true
		outcome = "inserted"
		return writeJSONArrayAtomic(path, docs)
	})
	if err != nil {
		s.fs.recordOp("standingsState", "error")
		return nil, false, err
	}
	if outcome != "" {
		s.fs.recordOp("standingsState", outcome)
	}
	return result, ok, nil
}

func (s *standingsStateStore) BulkWrite(ctx context.Context, ops []snapshotstore.StandingsStateWriteOp) (snapshotstore.BulkSummary, error) {
	if len(ops) == 0 {
		return snapshotstore.BulkSummary{}, nil
	}

	contestID := ops[0].ContestID
	var summary snapshotstore.BulkSummary
	path := s.filePath(contestID)
	err := withFileLock(s.fs, path, func() error {
		docs, err := readJSONArray[*standings.ParticipantState](path)
		if err != nil {
			return err
		}
		byHandle := make(map[string]int, len(docs))
		for i, d := range docs {
			byHandle[d.Handle] = i
		}
		for _, op := range ops {
			if op.ContestID != contestID {
				summary.Errors = append(summary.Errors, apierrors.NewInput(apierrors.TagInvalidContestID, "bulk write op for contest %q in a batch for contest %q", op.ContestID, contestID))
				continue
			}
			if idx, found := byHandle[op.Handle]; found {
				docs[idx] = op.Document
				summary.Modified++
			} else {
				byHandle[op.Handle] = len(docs)
				docs = append(docs, op.Document)
				summary.Upserted++
			}
		}
		return writeJSONArrayAtomic(path, docs)
	})
	if err != nil {
		summary.Errors = append(summary.Errors, err)
		s.fs.recordOp("standingsState", "error")
		return summary, err
	}
	s.fs.recordOp("standingsState", "bulk_write")
	return summary, nil
}

func (s *standingsStateStore) CountDocuments(ctx context.Context, contestID string) (int, error) {
	docs, err := s.Find(ctx, contestID)
	return len(docs), err
}
