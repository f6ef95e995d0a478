package memstore

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// AccountRepository keeps dev backend accounts in memory. IDs are
// sequential integers, matching the production backend.
type AccountRepository struct {
	mu       sync.RWMutex
	seq      int
	accounts map[string]*domain.Account
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.PromotionMethods = append([]string(nil), a.PromotionMethods...)
	return &c
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Username == account.Username || strings.EqualFold(a.Email, account.Email) {
			return nil, domain.ErrUserExists
		}
	}
	r.seq++
	c := cloneAccount(account)
	c.ID = strconv.Itoa(r.seq)
	r.accounts[c.ID] = c
	return cloneAccount(c), nil
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *AccountRepository) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Username == username })
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *AccountRepository) find(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *AccountRepository) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for id, a := range r.accounts {
		if id != account.ID && (a.Username == account.Username || strings.EqualFold(a.Email, account.Email)) {
			return domain.ErrUserExists
		}
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

// TokenBlacklist keeps revoked token ids until they expire.
type TokenBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

var _ ports.TokenBlacklist = (*TokenBlacklist)(nil)

func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{revoked: make(map[string]time.Time)}
}

func (b *TokenBlacklist) Revoke(_ context.Context, jti string, until time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for id, exp := range b.revoked {
		if !now.Before(exp) {
			delete(b.revoked, id)
		}
	}
	if now.Before(until) {
		b.revoked[jti] = until
	}
	return nil
}

func (b *TokenBlacklist) Revoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.revoked[jti]
	return ok && time.Now().Before(exp), nil
}
