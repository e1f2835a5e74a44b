package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenBlacklist tracks revoked JWTs until they would have expired
// anyway. The auth middleware consults it on every request.
type RedisTokenBlacklist struct {
	client *redis.Client
}

func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

// Revoke marks a token unusable for the remainder of its lifetime.
func (b *RedisTokenBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return b.client.Set(ctx, "blacklist:"+token, "revoked", ttl).Err()
}

// IsRevoked reports whether the token was revoked.
func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := b.client.Exists(ctx, "blacklist:"+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
