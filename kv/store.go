package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks a backend failure. Callers must treat it as fail-closed.
var ErrUnavailable = errors.New("kv store unavailable")

// Store is the expiring key-value contract used by the session, permission and
// contract-session registries.
type Store interface {
	// Get returns the value and true, or "" and false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key. ttl <= 0 stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfExists overwrites key only when it is still present, reporting whether
	// the write happened.
	SetIfExists(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// SetIfAbsent writes key only when it does not exist yet, reporting whether
	// the write happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Take atomically reads and deletes key. Concurrent callers see the value at
	// most once.
	Take(ctx context.Context, key string) (string, bool, error)
	// Del removes keys; missing keys are ignored.
	Del(ctx context.Context, keys ...string) error
	// Keys returns every key matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// TTL reports the remaining lifetime. It returns 0 for missing keys and -1 for
	// keys without expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Expire resets the lifetime of an existing key and reports whether it existed.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}
