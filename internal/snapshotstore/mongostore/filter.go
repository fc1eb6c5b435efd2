package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"

	"standings-replay-engine/internal/snapshotstore"
)

// bsonD builds a bson.D from alternating key/value pairs, used for compound
// index key documents where field order matters.
func bsonD(kv ...any) bson.D {
	d := make(bson.D, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		d = append(d, bson.E{Key: kv[i].(string), Value: kv[i+1]})
	}
	return d
}

// filterToBson translates a snapshotstore.Filter into a MongoDB filter
// document, so the document-database backend accepts exactly the same
// filter language as filestore.
func filterToBson(f snapshotstore.Filter) bson.M {
	m := bson.M{"contestId": f.ContestID}
	if f.Handle != nil {
		m["handle"] = *f.Handle
	}

	ts := bson.M{}
	if f.TimestampEq != nil {
		m["timestampSeconds"] = *f.TimestampEq
	} else {
		if f.TimestampLT != nil {
			ts["$lt"] = *f.TimestampLT
		}
		if f.TimestampLTE != nil {
			ts["$lte"] = *f.TimestampLTE
		}
		if f.TimestampGT != nil {
			ts["$gt"] = *f.TimestampGT
		}
		if f.TimestampGTE != nil {
			ts["$gte"] = *f.TimestampGTE
		}
		if len(ts) > 0 {
			m["timestampSeconds"] = ts
		}
	}
	return m
}

// sortDoc translates a SortOrder into the bson sort document for
// timestampSeconds; SortNone returns nil (no sort requested).
func sortDoc(order snapshotstore.SortOrder) bson.D {
	switch order {
	case snapshotstore.SortAscending:
		return bson.D{{Key: "timestampSeconds", Value: 1}}
	case snapshotstore.SortDescending:
		return bson.D{{Key: "timestampSeconds", Value: -1}}
	default:
		return nil
	}
}
