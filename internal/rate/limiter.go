package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "gosession:throttle"

// Config holds throttle tuning parameters.
type Config struct {
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter counts failed credential attempts in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	cfg.Prefix = strings.TrimSuffix(strings.TrimSpace(cfg.Prefix), ":")
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) key(source, identifier string) string {
	return l.config.Prefix + ":" + source + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

// Check returns [ErrRateLimited] when identifier has used its budget for source. It does not
// count the attempt.
func (l *Limiter) Check(ctx context.Context, source, identifier string) error {
	count, err := l.Attempts(ctx, source, identifier)
	if err != nil {
		return err
	}
	if l.config.MaxAttempts > 0 && count >= l.config.MaxAttempts {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts one failed attempt and reports [ErrRateLimited] when the budget is now
// exhausted.
//
//	Performance: 1 MULTI/EXEC round-trip (INCR + EXPIRE NX).
func (l *Limiter) RecordFailure(ctx context.Context, source, identifier string) error {
	key := l.key(source, identifier)

	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		// Fixed window: only the first hit sets the expiry.
		pipe.ExpireNX(ctx, key, l.config.Cooldown)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if l.config.MaxAttempts > 0 && incr.Val() >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *Limiter) Reset(ctx context.Context, source, identifier string) error {
	if err := l.redis.Del(ctx, l.key(source, identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures counted in the current window. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, source, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(source, identifier)).Int64()
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
