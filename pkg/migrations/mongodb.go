package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MessageBatchesCollection = "message_batches"
	EventsCollection         = "events"
)

// EnsureMongoCollections creates the indexes the store gateway relies on for
// its time-ordered, stream-scoped range queries. Safe to call on every
// startup; index creation is idempotent.
func EnsureMongoCollections(ctx context.Context, db *mongo.Database) error {
	if err := ensureMessageBatchIndexes(ctx, db); err != nil {
		return err
	}
	return ensureEventIndexes(ctx, db)
}

func ensureMessageBatchIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(MessageBatchesCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stream_key", Value: 1}, {Key: "first_timestamp", Value: 1}},
			Options: options.Index().SetName("idx_message_batches_stream_first_ts"),
		},
		{
			Keys:    bson.D{{Key: "stream_key", Value: 1}, {Key: "last_timestamp", Value: -1}},
			Options: options.Index().SetName("idx_message_batches_stream_last_ts"),
		},
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}},
			Options: options.Index().SetName("idx_message_batches_batch_id").SetUnique(true),
		},
	}

	return createIndexesIgnoringExists(ctx, collection, indexes)
}

func ensureEventIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(EventsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stream_key", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_events_stream_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "parent_event_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_events_parent_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("idx_events_event_id").SetUnique(true),
		},
	}

	return createIndexesIgnoringExists(ctx, collection, indexes)
}

func createIndexesIgnoringExists(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection.Name(), err)
	}
	return nil
}
