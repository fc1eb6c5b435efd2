package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

type standingsStateStore struct {
	coll    *mongo.Collection
	metrics *metrics.StoreMetrics
}

func (s *standingsStateStore) Find(ctx context.Context, contestID string) ([]*standings.ParticipantState, error) {
	cur, err := s.coll.Find(ctx, bson.M{"contestId": contestID})
	if err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "find standingsState", err)
	}
	defer cur.Close(ctx)

	var out []*standings.ParticipantState
	if err := cur.All(ctx, &out); err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "decode standingsState", err)
	}
	return out, nil
}

func (s *standingsStateStore) FindOne(ctx context.Context, contestID, handle string) (*standings.ParticipantState, bool, error) {
	var result standings.ParticipantState
	err := s.coll.FindOne(ctx, bson.M{"contestId": contestID, "handle": handle}).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apierrors.NewStorage(apierrors.TagStoreFailure, "find standingsState entry", err)
	}
	return &result, true, nil
}

func (s *standingsStateStore) FindOneAndUpdate(ctx context.Context, contestID, handle string, doc *standings.ParticipantState, upsert bool) (*standings.ParticipantState, bool, error) {
	opts := options.FindOneAndReplace().
		SetUpsert(upsert).
		SetReturnDocument(options.After)

	var result standings.ParticipantState
	err := s.coll.FindOneAndReplace(ctx, bson.M{"contestId": contestID, "handle": handle}, withContestID(doc, contestID), opts).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		recordOp(s.metrics, "standingsState", "error")
		return nil, false, apierrors.NewStorage(apierrors.TagStoreFailure, "upsert standingsState entry", err)
	}
	recordOp(s.metrics, "standingsState", "upserted")
	return &result, true, nil
}

func (s *standingsStateStore) BulkWrite(ctx context.Context, ops []snapshotstore.StandingsStateWriteOp) (snapshotstore.BulkSummary, error) {
	if len(ops) == 0 {
		return snapshotstore.BulkSummary{}, nil
	}

	models := make([]mongo.WriteModel, 0, len(ops))
	contestID := ops[0].ContestID
	var summary snapshotstore.BulkSummary
	for _, op := range ops {
		if op.ContestID != contestID {
			summary.Errors = append(summary.Errors, apierrors.NewInput(apierrors.TagInvalidContestID, "bulk write op for contest %q in a batch for contest %q", op.ContestID, contestID))
			continue
		}
		model := mongo.NewReplaceOneModel().
			SetFilter(bson.M{"contestId": op.ContestID, "handle": op.Handle}).
			SetReplacement(withContestID(op.Document, op.ContestID)).
			SetUpsert(true)
		models = append(models, model)
	}
	if len(models) == 0 {
		return summary, nil
	}

	result, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		summary.Errors = append(summary.Errors, apierrors.NewStorage(apierrors.TagStoreFailure, "bulk write standingsState", err))
		recordOp(s.metrics, "standingsState", "error")
		return summary, summary.Errors[len(summary.Errors)-1]
	}
	summary.Upserted = int(result.UpsertedCount)
	summary.Modified = int(result.ModifiedCount)
	recordOp(s.metrics, "standingsState", "bulk_write")
	return summary, nil
}

func (s *standingsStateStore) CountDocuments(ctx context.Context, contestID string) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"contestId": contestID})
	if err != nil {
		return 0, apierrors.NewStorage(apierrors.TagStoreFailure, "count standingsState", err)
	}
	return int(n), nil
}

// standingsStateDoc embeds a ParticipantState with the contestId the
// standingsState collection partitions on, since ParticipantState itself
// carries no contest identity (spec §4.3 keys this collection on
// (contestId, handle), but a participant's folded state is scoped to one
// contest at a time in memory).
type standingsStateDoc struct {
	ContestID string `bson:"contestId"`
	*standings.ParticipantState `bson:",inline"`
}

func withContestID(doc *standings.ParticipantState, contestID string) standingsStateDoc {
	return standingsStateDoc{ContestID: contestID, ParticipantState: doc}
}
