package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

type baseSnapshotStore struct {
	coll    *mongo.Collection
	metrics *metrics.StoreMetrics
}

func (s *baseSnapshotStore) Find(ctx context.Context, q snapshotstore.Query) ([]*standings.BaseSnapshot, error) {
	opts := options.Find()
	if sort := sortDoc(q.Sort); sort != nil {
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.coll.Find(ctx, filterToBson(q.Filter), opts)
	if err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "find baseSnapshots", err)
	}
	defer cur.Close(ctx)

	var out []*standings.BaseSnapshot
	if err := cur.All(ctx, &out); err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "decode baseSnapshots", err)
	}
	return out, nil
}

func (s *baseSnapshotStore) FindOne(ctx context.Context, q snapshotstore.Query) (*standings.BaseSnapshot, bool, error) {
	q.Limit = 1
	docs, err := s.Find(ctx, q)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (s *baseSnapshotStore) FindOneAndUpdate(ctx context.Context, filter snapshotstore.Filter, doc *standings.BaseSnapshot, upsert bool) (*standings.BaseSnapshot, bool, error) {
	if filter.TimestampEq == nil {
		return nil, false, apierrors.NewInput(apierrors.TagInvalidTimestamp, "FindOneAndUpdate requires an equality timestamp filter")
	}

	opts := options.FindOneAndReplace().
		SetUpsert(upsert).
		SetReturnDocument(options.After)

	var result standings.BaseSnapshot
	err := s.coll.FindOneAndReplace(ctx, filterToBson(filter), doc, opts).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		recordOp(s.metrics, "baseSnapshots", "error")
		return nil, false, apierrors.NewStorage(apierrors.TagStoreFailure, "upsert baseSnapshot", err)
	}
	recordOp(s.metrics, "baseSnapshots", "upserted")
	return &result, true, nil
}

func (s *baseSnapshotStore) CountDocuments(ctx context.Context, filter snapshotstore.Filter) (int, error) {
	n, err := s.coll.CountDocuments(ctx, filterToBson(filter))
	if err != nil {
		return 0, apierrors.NewStorage(apierrors.TagStoreFailure, "count baseSnapshots", err)
	}
	return int(n), nil
}
