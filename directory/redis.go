package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gosession:admins"

// RedisDirectory reads account hashes written by the directory owner.
type RedisDirectory struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisDirectory(client redis.UniversalClient, prefix string) *RedisDirectory {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisDirectory{redis: client, prefix: prefix}
}

func (d *RedisDirectory) key(email string) string {
	return d.prefix + ":" + email
}

// Lookup reads the "disabled" field of the account hash.
//
//	Performance: 1 Redis HGETALL.
func (d *RedisDirectory) Lookup(ctx context.Context, email string) (Record, error) {
	email = NormalizeEmail(email)
	fields, err := d.redis.HGetAll(ctx, d.key(email)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("redis directory lookup: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return Record{Email: email, Disabled: parseDisabled(fields["disabled"])}, nil
}

// SetDisabled writes the account hash. The directory owner normally does this; it is exposed
// for tooling and tests.
func (d *RedisDirectory) SetDisabled(ctx context.Context, email string, disabled bool) error {
	email = NormalizeEmail(email)
	v := "0"
	if disabled {
		v = "1"
	}
	if err := d.redis.HSet(ctx, d.key(email), "email", email, "disabled", v).Err(); err != nil {
		return fmt.Errorf("redis directory write: %w", err)
	}
	return nil
}
