// Package kv is the key-value persistence behind the event store and the
// OAuth token store. Values are opaque JSON documents addressed by string key.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/beekhof/tripcal/internal/config"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store gets and sets whole values by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendFile, "":
		return NewFile(cfg.Path)
	case config.BackendRedis:
		return NewRedis(ctx, cfg.RedisURL)
	case config.BackendPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
