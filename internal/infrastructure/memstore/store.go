// Package memstore holds in-process implementations of the storage ports.
// They back the portal when STORE_BACKEND=memory and the dev backend when
// USER_BACKEND=memory, and are lost on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

type entry struct {
	value   string
	expires time.Time
}

// SessionStore keeps every browser session's keys in one map. Expiry is
// sliding and checked lazily on read.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	data map[string]entry
}

var _ ports.StoreFactory = (*SessionStore)(nil)

// NewSessionStore returns an empty store. A ttl of zero keeps keys forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{ttl: ttl, now: time.Now, data: make(map[string]entry)}
}

// Scope returns the store of one browser session.
func (s *SessionStore) Scope(sid string) ports.Store {
	return &scoped{parent: s, prefix: sid + ":"}
}

func (s *SessionStore) expired(e entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

func (s *SessionStore) deadline() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

type scoped struct {
	parent *SessionStore
	prefix string
}

func (s *scoped) Get(_ context.Context, key string) (string, error) {
	p := s.parent
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.data[s.prefix+key]
	if !ok {
		return "", domain.ErrStoreMiss
	}
	if p.expired(e) {
		delete(p.data, s.prefix+key)
		return "", domain.ErrStoreMiss
	}
	e.expires = p.deadline()
	p.data[s.prefix+key] = e
	return e.value, nil
}

func (s *scoped) Set(_ context.Context, key, value string) error {
	p := s.parent
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[s.prefix+key] = entry{value: value, expires: p.deadline()}
	return nil
}

func (s *scoped) Remove(_ context.Context, key string) error {
	p := s.parent
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, s.prefix+key)
	return nil
}
