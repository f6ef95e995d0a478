package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/core/ports"
	"github.com/024globalconnect/portal/pkg/logger"
)

const (
	defaultRegistrySize = 10000
	defaultRegistryIdle = 30 * time.Minute
	initTimeout         = 5 * time.Second
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Size caps the number of live managers; the least recently used is evicted.
	Size int
	// Idle evicts a manager that has not been acquired for this long. Its
	// persisted session survives and is restored on the next request.
	Idle    time.Duration
	Manager ManagerOptions
}

// Registry keeps one Manager per browser session id.
type Registry struct {
	auth   ports.AuthClient
	stores ports.StoreFactory
	log    zerolog.Logger
	opts   ManagerOptions

	mu    sync.Mutex
	cache *expirable.LRU[string, *Manager]
}

var _ ports.SessionRegistry = (*Registry)(nil)

func NewRegistry(auth ports.AuthClient, stores ports.StoreFactory, log zerolog.Logger, opts RegistryOptions) *Registry {
	if opts.Size <= 0 {
		opts.Size = defaultRegistrySize
	}
	if opts.Idle <= 0 {
		opts.Idle = defaultRegistryIdle
	}
	r := &Registry{
		auth:   auth,
		stores: stores,
		log:    log,
		opts:   opts.Manager,
	}
	r.cache = expirable.NewLRU[string, *Manager](opts.Size, func(sid string, _ *Manager) {
		r.log.Debug().Str("sid", logger.SessionID(sid)).Msg("session manager evicted")
	}, opts.Idle)
	return r
}

// Acquire returns the manager for sid, creating it on first use. A new
// manager starts initializing in the background and reports Loading until
// that finishes.
//
// An evicted manager is not stopped. A request that still holds it finishes
// against it, and the store stays the shared record: the replacement
// manager sees whatever that request persisted once it initializes.
func (r *Registry) Acquire(ctx context.Context, sid string) ports.SessionManager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.cache.Get(sid); ok {
		r.cache.Add(sid, m) // slide the idle window
		return m
	}

	m := NewManager(r.auth, r.stores.Scope(sid), r.log.With().Str("sid", logger.SessionID(sid)).Logger(), r.opts)
	r.cache.Add(sid, m)

	initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initTimeout)
	go func() {
		defer cancel()
		m.Init(initCtx)
	}()
	return m
}

// Len reports the number of live managers.
func (r *Registry) Len() int {
	return r.cache.Len()
}
