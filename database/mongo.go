package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Pool limits for the call path. Every live call shares this pool.
const (
	mongoMaxPoolSize       = 10
	mongoMinPoolSize       = 1
	mongoServerSelectionTO = 5 * time.Second
	mongoConnectTimeout    = 10 * time.Second
)

// ConnectMongo opens a pooled client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(mongoMaxPoolSize).
		SetMinPoolSize(mongoMinPoolSize).
		SetServerSelectionTimeout(mongoServerSelectionTO)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}
