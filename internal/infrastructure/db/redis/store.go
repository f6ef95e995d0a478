package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// SessionStore persists browser sessions in Redis.
// Key format: portal:session:<sid>:<key>
//
// Every read and write pushes the key's expiry out by ttl, so a session
// lives as long as it keeps being used.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.StoreFactory = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore wrapping the given Redis client.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Scope returns the store of one browser session.
func (s *SessionStore) Scope(sid string) ports.Store {
	return &scopedStore{client: s.client, ttl: s.ttl, prefix: "portal:session:" + sid + ":"}
}

type scopedStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.GetEx(ctx, s.prefix+key, s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrStoreMiss
	}
	if err != nil {
		return "", fmt.Errorf("session get %s: %w", key, err)
	}
	return v, nil
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

func (s *scopedStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("session remove %s: %w", key, err)
	}
	return nil
}
