package kv

import (
	"context"
	"errors"
	"fmt"
)

// Well-known keys owned by the progress store
const (
	KeyBadges   = "badges"
	KeyProgress = "progress"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("key not found")

// Store is a flat key-value store namespaced per learner.
// Values are opaque serialized blobs.
type Store interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, learnerID, key string) ([]byte, error)

	// Set overwrites the value for key
	Set(ctx context.Context, learnerID, key string, value []byte) error

	// Ping checks backend availability
	Ping(ctx context.Context) error

	// Close releases backend resources
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options configures Open
type Options struct {
	Backend       string
	SQLitePath    string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
	MigrationsDir string
}

// Open creates the store selected by opts.Backend
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, "":
		return NewSQLite(ctx, opts.SQLitePath)
	case BackendRedis:
		return NewRedis(ctx, opts.RedisAddress, opts.RedisPassword, opts.RedisDB)
	case BackendPostgres:
		if opts.MigrationsDir != "" {
			if err := MigrateFromDSN(ctx, opts.PostgresDSN, opts.MigrationsDir); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return NewPostgres(ctx, PostgresConfig{DSN: opts.PostgresDSN})
	default:
		return nil, fmt.Errorf("unknown kv backend: %q", opts.Backend)
	}
}
