// Package database owns the connection lifecycle for the user store
// (MongoDB or MariaDB) and Redis. Connections are created once at startup
// and shared across the application via dependency injection.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/keyxmakerx/secrets/internal/config"
)

// NewMongo connects to MongoDB and returns the configured database handle
// together with its client (the caller disconnects the client on shutdown).
// The primary is pinged with backoff because the store container may still
// be starting when the app launches.
func NewMongo(cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	const maxRetries = 5
	backoff := time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		pingErr = client.Ping(ctx, readpref.Primary())
		cancel()

		if pingErr == nil {
			return client, client.Database(cfg.Database), nil
		}
		if attempt == maxRetries {
			break
		}

		slog.Warn("mongodb not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}

	_ = client.Disconnect(context.Background())
	return nil, nil, fmt.Errorf("pinging mongodb after %d attempts: %w", maxRetries, pingErr)
}
