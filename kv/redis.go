package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// Redis is a [Store] backed by go-redis. All keys are namespaced under prefix.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis wraps client. An empty prefix stores keys verbatim.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	prefix = strings.TrimSuffix(prefix, ":")
	return &Redis{redis: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) strip(k string) string {
	if r.prefix == "" {
		return k
	}
	return strings.TrimPrefix(k, r.prefix+":")
}

// Get implements [Store].
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.redis.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

// Set implements [Store].
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.redis.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetIfExists implements [Store] with SET ... XX, so a concurrent delete is never undone.
func (r *Redis) SetIfExists(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.redis.SetXX(ctx, r.key(key), value, ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// SetIfAbsent implements [Store] with SET ... NX.
func (r *Redis) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.redis.SetNX(ctx, r.key(key), value, ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Take implements [Store] with GETDEL.
func (r *Redis) Take(ctx context.Context, key string) (string, bool, error) {
	val, err := r.redis.GetDel(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

// Del implements [Store].
func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Keys walks the keyspace with SCAN; it is O(n) and meant for per-user listings
// over narrow patterns, not hot paths.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	seen := make(map[string]struct{})

	for {
		keys, next, err := r.redis.Scan(ctx, cursor, r.key(pattern), scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// SCAN may return a key more than once across iterations.
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r.strip(k))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}

// TTL implements [Store].
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.redis.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch {
	case d == -2 || d == -2*time.Second:
		return 0, nil
	case d < 0:
		return -1, nil
	}
	return d, nil
}

// Expire implements [Store].
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.redis.Expire(ctx, r.key(key), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Ping implements [Store].
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SAdd implements [Store].
func (r *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.redis.SAdd(ctx, r.key(key), args...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SRem implements [Store].
func (r *Redis) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.redis.SRem(ctx, r.key(key), args...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SMembers implements [Store].
func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.redis.SMembers(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return members, nil
}
