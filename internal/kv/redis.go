package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store on a shared Redis instance.
// Learners are separated by key prefix.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, address, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis kv store connected", "address", address, "db", db)
	return &Redis{client: client}, nil
}

// redisKey builds "learner:<id>:<key>"
func redisKey(learnerID, key string) string {
	return fmt.Sprintf("learner:%s:%s", strings.ReplaceAll(learnerID, ":", "_"), key)
}

func (r *Redis) Get(ctx context.Context, learnerID, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, redisKey(learnerID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, learnerID, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(learnerID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Ping verifies Redis connectivity
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}
