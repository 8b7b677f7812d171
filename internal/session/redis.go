package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gatehouse:session:"

// RedisStore keeps each session as a JSON string under its own key, with
// the key TTL acting as the idle timeout.
type RedisStore struct {
	client *redis.Client
	idle   time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL (redis://[:password@]host:port/db)
// and checks the server answers.
func NewRedisStore(ctx context.Context, redisURL string, idle time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("session: parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: pinging redis: %w", err)
	}

	return &RedisStore{client: client, idle: idle}, nil
}

func key(id string) string { return keyPrefix + id }

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encoding %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, key(s.ID), payload, r.idle).Err(); err != nil {
		return fmt.Errorf("session: saving %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := r.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: loading %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("session: decoding %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Touch(ctx context.Context, id string) error {
	ok, err := r.client.Expire(ctx, key(id), r.idle).Result()
	if err != nil {
		return fmt.Errorf("session: touching %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("session: deleting %s: %w", id, err)
	}
	return nil
}

// Ping is used by /healthz when sessions live in Redis.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
