// Package mongodb implements repository.UserRepository on MongoDB, the
// production Credential Store.
//
// DOCUMENT SHAPE:
// Each user is one document in the "users" collection:
//
//	{_id: ObjectId, first_name, last_name, email, username, password_hash, created_at}
//
// MongoDB generates nothing for us client-side beyond the ObjectID; we let
// the driver assign it on insert and expose it as its 24-char hex string.
//
// UNIQUENESS:
// The service checks username/email before inserting, but that check is a
// read-then-write race. Unique indexes on both fields (created in New) make
// the database the final arbiter; a duplicate-key error is translated to
// apperror.Conflict so callers see the same field error either way.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	usersCollection = "users"

	usernameIndex = "username_unique"
	emailIndex    = "email_unique"
)

// Config holds connection settings.
type Config struct {
	URI      string
	Database string
	// Timeout bounds connecting, pinging and creating indexes in New.
	Timeout time.Duration
}

// Store owns the client connection pool and the users collection.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
}

// New connects, verifies the deployment answers a ping, and ensures the
// unique indexes exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: pinging deployment: %w", err)
	}

	s := &Store{
		client: client,
		users:  client.Database(cfg.Database).Collection(usersCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(usernameIndex),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("mongodb: creating user indexes: %w", err)
	}
	return nil
}

// Ping reports whether the primary is reachable. Used by /healthz.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb: ping: %w", err)
	}
	return nil
}

// Close disconnects the client, waiting for in-use connections up to ctx.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
