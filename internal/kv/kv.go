// Package kv defines the key/value primitive every record in the app is persisted through.
//
// A Store serializes each single-key operation but offers no multi-key transactions.
// Callers that read, modify and write a record must tolerate lost updates under
// concurrent access.
package kv

import (
	"context"
	"strings"
)

// Store is a hosted or embedded key/value store.
type Store interface {
	// Get returns the raw value at key, or nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error

	// Keys lists every key starting with prefix, in no particular order.
	// An empty prefix lists the whole store.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Incr atomically increments the integer counter at key and returns the new value.
	// A missing key counts from zero.
	Incr(ctx context.Context, key string) (int64, error)

	// HIncrBy atomically adds n to field of the hash at key.
	HIncrBy(ctx context.Context, key, field string, n int64) (int64, error)
	// HGetAll returns every field of the hash at key, empty if absent.
	HGetAll(ctx context.Context, key string) (map[string]int64, error)

	Close() error
}

// Open picks a backend by name. url is a redis URL or address for "redis" and a
// database path for "sqlite".
func Open(ctx context.Context, backend, url string) (Store, error) {
	switch strings.ToLower(backend) {
	case "redis":
		return NewRedisStore(ctx, url)
	case "sqlite", "":
		return NewSQLiteStore(url)
	default:
		return nil, &UnknownBackendError{Backend: backend}
	}
}

// UnknownBackendError is returned by Open for an unsupported backend name.
type UnknownBackendError struct {
	Backend string
}

func (e *UnknownBackendError) Error() string {
	return "unknown store backend " + e.Backend
}
