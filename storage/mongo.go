package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cooldownCollection = "cooldowns"

// MongoCooldown keeps cooldown marks across restarts. The bot is a single
// process, so check-and-record is serialized with a process-local mutex
// rather than a server-side transaction.
type MongoCooldown struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        *slog.Logger
	mutex      sync.Mutex
}

func NewMongoCooldown(uri, database string, log *slog.Logger) (*MongoCooldown, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	collection := client.Database(database).Collection(cooldownCollection)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Warn("creating index", slog.String("error", err.Error()))
	}

	return &MongoCooldown{
		client:     client,
		collection: collection,
		log:        log,
	}, nil
}

func (m *MongoCooldown) MayProceed(userId int64, window time.Duration) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()

	var entry CooldownEntry
	err := m.collection.FindOne(ctx, bson.M{"user_id": userId}).Decode(&entry)
	if err != nil && err != mongo.ErrNoDocuments {
		return false, fmt.Errorf("finding cooldown entry: %w", err)
	}
	if err == nil && now.Sub(entry.LastRequest) < window {
		return false, nil
	}

	update := bson.M{
		"$set":         bson.M{"last_request": now},
		"$setOnInsert": bson.M{"user_id": userId},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userId}, update, opts); err != nil {
		return false, fmt.Errorf("recording request time: %w", err)
	}
	return true, nil
}

func (m *MongoCooldown) RemainingWait(userId int64, window time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var entry CooldownEntry
	err := m.collection.FindOne(ctx, bson.M{"user_id": userId}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("finding cooldown entry: %w", err)
	}

	elapsed := time.Since(entry.LastRequest)
	if elapsed >= window {
		return 0, nil
	}
	return (window - elapsed).Truncate(time.Minute), nil
}

func (m *MongoCooldown) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// GetClient returns the MongoDB client for sharing with other storages
func (m *MongoCooldown) GetClient() *mongo.Client {
	return m.client
}

// GetDatabase returns the database name
func (m *MongoCooldown) GetDatabase() string {
	return m.collection.Database().Name()
}
