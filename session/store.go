package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTokenKey = "token"
	defaultUserKey  = "user"
)

// RedisStore is a Redis-backed [Store]. The token and the serialized user live under two
// keys that are always written and removed in the same transaction.
type RedisStore struct {
	redis    redis.UniversalClient
	tokenKey string
	userKey  string
	ttl      time.Duration
}

// NewRedisStore creates a [RedisStore]. prefix namespaces both keys ("<prefix>:token",
// "<prefix>:user"); ttl of zero keeps the pair until cleared.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return NewRedisStoreWithKeys(client, prefix, defaultTokenKey, defaultUserKey, ttl)
}

// NewRedisStoreWithKeys is [NewRedisStore] with explicit key names.
func NewRedisStoreWithKeys(client redis.UniversalClient, prefix, tokenKey, userKey string, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis:    client,
		tokenKey: joinKey(prefix, tokenKey),
		userKey:  joinKey(prefix, userKey),
		ttl:      ttl,
	}
}

func joinKey(prefix, name string) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

// Keys returns the token and user key names.
func (s *RedisStore) Keys() (string, string) {
	return s.tokenKey, s.userKey
}

// Read loads the persisted pair.
//
//	Performance: 1 Redis MGET, plus 1 DEL when an orphaned user is found.
func (s *RedisStore) Read(ctx context.Context) (*Record, error) {
	vals, err := s.redis.MGet(ctx, s.tokenKey, s.userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token := stringValue(vals, 0)
	rawUser := stringValue(vals, 1)

	switch {
	case token == "" && rawUser == "":
		return nil, nil
	case token == "":
		// A user without its token is never a valid session.
		if err := s.redis.Del(ctx, s.userKey).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil, nil
	case rawUser == "":
		return &Record{Token: token}, nil
	}

	user, err := DecodeUser([]byte(rawUser))
	if err != nil {
		// Keep the token; the resolver re-fetches the user and rewrites the pair.
		return &Record{Token: token}, nil
	}
	return &Record{Token: token, User: user}, nil
}

// Write persists token and user atomically.
//
//	Performance: 1 MULTI/EXEC round-trip (2 SETs).
func (s *RedisStore) Write(ctx context.Context, token string, user UserRecord) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	data, err := EncodeUser(user)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey, token, s.ttl)
		pipe.Set(ctx, s.userKey, data, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear removes both keys. Clearing an empty store is not an error.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.tokenKey, s.userKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func stringValue(vals []interface{}, i int) string {
	if i >= len(vals) || vals[i] == nil {
		return ""
	}
	switch v := vals[i].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
