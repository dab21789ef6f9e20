package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per key in a single collection.
type MongoStore struct {
	collection *mongo.Collection
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(20)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("kv_entries"),
	}
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry mongoEntry

	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return entry.Value, nil
}

func (m *MongoStore) Set(ctx context.Context, key string, value []byte) error {
	update := bson.M{"$set": bson.M{
		"value":      value,
		"updated_at": time.Now(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.collection.Database().Client().Disconnect(ctx)
}
