// internal/domain/activity/mongo_store.go
package activity

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "activity_events"

// MongoStore keeps activity events in a Mongo collection
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a store on db
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(collectionName)}
}

// EnsureIndexes creates the indexes used by the aggregations
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "occurred_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32((180 * 24 * time.Hour).Seconds())),
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create activity indexes: %w", err)
	}
	return nil
}

// Record inserts one event
func (s *MongoStore) Record(ctx context.Context, event Event) error {
	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert activity event: %w", err)
	}
	return nil
}

// TopSearches returns the most frequent search queries since the given time
func (s *MongoStore) TopSearches(ctx context.Context, since time.Time, limit int) ([]SearchTerm, error) {
	cursor, err := s.collection.Aggregate(ctx, topSearchesPipeline(since, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate searches: %w", err)
	}
	defer cursor.Close(ctx)

	terms := []SearchTerm{}
	if err := cursor.All(ctx, &terms); err != nil {
		return nil, fmt.Errorf("failed to decode searches: %w", err)
	}
	return terms, nil
}

// CountByEntity counts events of one type grouped by entity
func (s *MongoStore) CountByEntity(ctx context.Context, eventType, entityType string, since time.Time) ([]EntityCount, error) {
	cursor, err := s.collection.Aggregate(ctx, entityCountPipeline(eventType, entityType, since))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s events: %w", eventType, err)
	}
	defer cursor.Close(ctx)

	counts := []EntityCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode %s counts: %w", eventType, err)
	}
	return counts, nil
}

func topSearchesPipeline(since time.Time, limit int) mongo.Pipeline {
	if limit <= 0 {
		limit = 10
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "type", Value: TypeSearch},
			{Key: "query", Value: bson.D{{Key: "$ne", Value: ""}}},
			{Key: "occurred_at", Value: bson.D{{Key: "$gte", Value: since}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$query"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
}

func entityCountPipeline(eventType, entityType string, since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "type", Value: eventType},
			{Key: "entity_type", Value: entityType},
			{Key: "occurred_at", Value: bson.D{{Key: "$gte", Value: since}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$entity_id"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}
}
