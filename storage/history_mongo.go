package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollection = "generations"

// MongoHistory reuses the client owned by MongoCooldown; Close is a no-op
// for that reason.
type MongoHistory struct {
	collection *mongo.Collection
	log        *slog.Logger
}

func NewMongoHistory(client *mongo.Client, database string, log *slog.Logger) *MongoHistory {
	collection := client.Database(database).Collection(historyCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		log.Warn("creating index", slog.String("error", err.Error()))
	}

	return &MongoHistory{
		collection: collection,
		log:        log,
	}
}

func (m *MongoHistory) SaveGeneration(record GenerationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if _, err := m.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("inserting generation record: %w", err)
	}
	return nil
}

func (m *MongoHistory) RecentGenerations(userId int64, limit int) ([]GenerationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, bson.M{"user_id": userId}, opts)
	if err != nil {
		return nil, fmt.Errorf("finding generation records: %w", err)
	}

	var records []GenerationRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding generation records: %w", err)
	}
	return records, nil
}

func (m *MongoHistory) Close() error {
	return nil
}
