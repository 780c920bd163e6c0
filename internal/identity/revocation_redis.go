package identity

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationList stores revoked session ids in Redis with a TTL equal
// to the remaining session lifetime, so entries expire on their own.
type RedisRevocationList struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationList creates a Redis-backed revocation list. Prefix may be empty.
func NewRedisRevocationList(client *redis.Client, prefix string) *RedisRevocationList {
	if prefix == "" {
		prefix = "revoked:"
	}
	return &RedisRevocationList{client: client, prefix: prefix}
}

func (r *RedisRevocationList) key(jti string) string {
	return r.prefix + jti
}

func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(jti), "1", ttl).Err()
}

func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, r.key(jti)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
