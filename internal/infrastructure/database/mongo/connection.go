// internal/infrastructure/database/mongo/connection.go
package mongo

import (
	"context"
	"fmt"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client wraps the Mongo client and the activity database
type Client struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewConnection connects to Mongo. It returns nil, nil when no URI is configured.
func NewConnection(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.Mongo.URI == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetAppName(cfg.App.Name)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.WithField("database", cfg.Mongo.Database).Info("mongodb connection established")

	return &Client{
		Client:   client,
		Database: client.Database(cfg.Mongo.Database),
	}, nil
}

// Health pings the primary
func (c *Client) Health(ctx context.Context) error {
	return c.Client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.Client.Disconnect(ctx)
}
