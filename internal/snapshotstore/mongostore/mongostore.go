// Package mongostore implements the Snapshot Store's document-database
// backend on top of MongoDB: one database per deployment, three collections
// per the layout in spec §4.3 — baseSnapshots, deltaSnapshots, and
// standingsState — shared across every contest the store hosts and keyed by
// contestId. It must be semantically equivalent to the filestore backend
// (spec §9): any divergence in filter, sort, or tie ordering is a bug.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/snapshotstore"
)

const (
	collectionBaseSnapshots  = "baseSnapshots"
	collectionDeltaSnapshots = "deltaSnapshots"
	collectionStandingsState = "standingsState"
)

// MongoStore is a Store backed by a MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database

	metrics *metrics.StoreMetrics
}

// SetMetrics attaches a StoreMetrics recorder; writes issued before this is
// set are not recorded.
func (s *MongoStore) SetMetrics(m *metrics.StoreMetrics) { s.metrics = m }

// New connects to uri and opens database dbName, creating the indexes the
// store's query patterns rely on (spec §4.3): a unique key on every
// collection, plus a descending secondary index on the two snapshot
// collections to serve "most recent snapshot at or before T" lookups.
func New(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(30 * time.Second).
		SetServerSelectionTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "connect to mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "ping mongo", err)
	}

	s := &MongoStore{client: client, database: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	snapshotIndexes := []mongo.IndexModel{
		{
			Keys:    bsonD("contestId", 1, "timestampSeconds", 1),
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bsonD("contestId", 1, "timestampSeconds", -1),
		},
	}
	for _, coll := range []string{collectionBaseSnapshots, collectionDeltaSnapshots} {
		if _, err := s.database.Collection(coll).Indexes().CreateMany(ctx, snapshotIndexes); err != nil {
			return apierrors.NewStorage(apierrors.TagStoreFailure, fmt.Sprintf("create indexes on %s", coll), err)
		}
	}

	stateIndex := mongo.IndexModel{
		Keys:    bsonD("contestId", 1, "handle", 1),
		Options: options.Index().SetUnique(true),
	}
	if _, err := s.database.Collection(collectionStandingsState).Indexes().CreateOne(ctx, stateIndex); err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "create indexes on standingsState", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) BaseSnapshots() snapshotstore.BaseSnapshotStore {
	return &baseSnapshotStore{coll: s.database.Collection(collectionBaseSnapshots), metrics: s.metrics}
}

func (s *MongoStore) DeltaSnapshots() snapshotstore.DeltaSnapshotStore {
	return &deltaSnapshotStore{coll: s.database.Collection(collectionDeltaSnapshots), metrics: s.metrics}
}

func (s *MongoStore) StandingsState() snapshotstore.StandingsStateStore {
	return &standingsStateStore{coll: s.database.Collection(collectionStandingsState), metrics: s.metrics}
}

// recordOp reports a write-path outcome if a StoreMetrics recorder is
// attached; it is a no-op otherwise.
func recordOp(m *metrics.StoreMetrics, collection, outcome string) {
	if m != nil {
		m.IncrementOperation("mongo", collection, outcome)
	}
}
