package blackboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore mirrors blackboard bindings to a MongoDB collection for audit
// and replay: an append-only, per-process event log keyed by process ID,
// read back as an ordered snapshot. The Blackboard itself never reads from
// this store; it is a one-way audit trail.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore wraps a collection (typically "blackboard_bindings") as a
// MongoStore.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// bindingDoc is the durable representation of a single AddObject call.
type bindingDoc struct {
	ProcessID string    `bson:"process_id"`
	TypeName  string    `bson:"type_name"`
	Label     string    `bson:"label,omitempty"`
	ValueJSON string    `bson:"value_json"`
	At        time.Time `bson:"at"`
}

// Record persists one binding event for processID. Callers typically invoke
// this from a blackboard.Updater or a post-AddObject hook; the Blackboard
// type itself stays storage-agnostic.
func (s *MongoStore) Record(ctx context.Context, processID string, key TypeKey, value any, at time.Time) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("blackboard: marshal value for mongo mirror: %w", err)
	}
	doc := bindingDoc{
		ProcessID: processID,
		TypeName:  key.Type.String(),
		Label:     key.Label,
		ValueJSON: string(payload),
		At:        at,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("blackboard: insert mongo mirror doc: %w", err)
	}
	return nil
}

// Snapshot is the ordered audit trail for one process, oldest first.
type Snapshot struct {
	ProcessID string
	Bindings  []BindingRecord
}

// BindingRecord is one persisted binding event.
type BindingRecord struct {
	TypeName  string
	Label     string
	ValueJSON string
	At        time.Time
}

// Load retrieves the full audit trail for processID, ordered by write time.
// Returns an empty Snapshot (not an error) if no bindings were ever
// recorded.
func (s *MongoStore) Load(ctx context.Context, processID string) (Snapshot, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cur, err := s.collection.Find(ctx, bson.M{"process_id": processID}, findOpts)
	if err != nil {
		return Snapshot{}, fmt.Errorf("blackboard: query mongo mirror: %w", err)
	}
	defer cur.Close(ctx)

	snap := Snapshot{ProcessID: processID}
	for cur.Next(ctx) {
		var doc bindingDoc
		if err := cur.Decode(&doc); err != nil {
			return Snapshot{}, fmt.Errorf("blackboard: decode mongo mirror doc: %w", err)
		}
		snap.Bindings = append(snap.Bindings, BindingRecord{
			TypeName:  doc.TypeName,
			Label:     doc.Label,
			ValueJSON: doc.ValueJSON,
			At:        doc.At,
		})
	}
	if err := cur.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("blackboard: iterate mongo mirror: %w", err)
	}
	return snap, nil
}
