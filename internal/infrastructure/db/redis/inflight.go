package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

const defaultInFlightTTL = 35 * time.Second

// releaseScript deletes the lock only if it still holds our token, so a
// lock that expired and was taken by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// InFlightGuard rejects a second submission of the same operation for the
// same session while the first one is still running.
// Key format: portal:inflight:<op>:<sid>
type InFlightGuard struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.InFlightGuard = (*InFlightGuard)(nil)

// NewInFlightGuard creates an InFlightGuard. ttl bounds how long a crashed
// request can hold the lock; it should exceed the slowest remote call.
func NewInFlightGuard(client *redis.Client, ttl time.Duration) *InFlightGuard {
	if ttl <= 0 {
		ttl = defaultInFlightTTL
	}
	return &InFlightGuard{client: client, ttl: ttl}
}

// Acquire returns domain.ErrInFlight when op is already running for sid.
func (g *InFlightGuard) Acquire(ctx context.Context, sid, op string) (func(), error) {
	key := fmt.Sprintf("portal:inflight:%s:%s", op, sid)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("inflight acquire: %w", err)
	}
	if !ok {
		return nil, domain.ErrInFlight
	}

	return func() {
		// The request context may already be done; release must still run.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err()
	}, nil
}
