package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	Enabled     bool
	MaxFailures int
	Window      time.Duration
	// Prefix namespaces counter keys; empty means "wa_rl".
	Prefix string
}

// Limiter throttles repeated failed sign-in verifications per client IP using
// fixed-window Redis counters.
//
// Counters are never keyed by the address or fid a message claims: that claim
// is unverified until the signature checks out, so counting it would let anyone
// lock a victim out by replaying bad signatures in their name.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "wa_rl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when ip has exhausted its failure budget. An
// empty ip is never limited.
func (l *Limiter) Check(ctx context.Context, ip string) error {
	if !l.active(ip) {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxFailures) {
		return ErrRateLimited
	}

	return nil
}

// RecordFailure counts one failed verification from ip. It returns
// ErrRateLimited once the budget is exceeded.
func (l *Limiter) RecordFailure(ctx context.Context, ip string) error {
	if !l.active(ip) {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.key(ip), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxFailures) {
		return ErrRateLimited
	}
	return nil
}

// Failures returns the current counter for ip. Missing keys return zero.
func (l *Limiter) Failures(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) active(ip string) bool {
	return l != nil && l.config.Enabled && ip != ""
}

func (l *Limiter) key(ip string) string {
	return l.config.Prefix + ":ip:" + ip
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
