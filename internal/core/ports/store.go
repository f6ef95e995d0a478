package ports

import "context"

// Store is durable key-value storage for one client session. Get returns
// domain.ErrStoreMiss when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// StoreFactory hands out a Store scoped to a browser session id.
type StoreFactory interface {
	Scope(sid string) Store
}

// InFlightGuard serialises form submissions per browser session. Acquire
// returns domain.ErrInFlight when op is already running for sid.
type InFlightGuard interface {
	Acquire(ctx context.Context, sid, op string) (release func(), err error)
}
