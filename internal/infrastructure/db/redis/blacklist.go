package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/024globalconnect/portal/internal/core/ports"
)

// TokenBlacklist records revoked refresh tokens. Entries expire when the
// token itself would have.
// Key format: devapi:blacklist:<jti>
type TokenBlacklist struct {
	client *redis.Client
}

var _ ports.TokenBlacklist = (*TokenBlacklist)(nil)

func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{client: client}
}

func (b *TokenBlacklist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist revoke: %w", err)
	}
	return nil
}

func (b *TokenBlacklist) Revoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist check: %w", err)
	}
	return n > 0, nil
}

func (b *TokenBlacklist) key(jti string) string {
	return "devapi:blacklist:" + jti
}
