package memstore

import (
	"context"
	"sync"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// InFlightGuard is the single-process submission guard.
type InFlightGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ ports.InFlightGuard = (*InFlightGuard)(nil)

func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{held: make(map[string]struct{})}
}

// Acquire returns domain.ErrInFlight when op is already running for sid.
// The returned release is safe to call more than once.
func (g *InFlightGuard) Acquire(_ context.Context, sid, op string) (func(), error) {
	key := op + ":" + sid

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return nil, domain.ErrInFlight
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
