package ports

import (
	"context"
	"time"

	"github.com/024globalconnect/portal/internal/core/domain"
)

// AccountRepository defines the persistence of dev backend accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
}

// TokenBlacklist records revoked refresh tokens by their jti until they
// would have expired anyway.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	Revoked(ctx context.Context, jti string) (bool, error)
}
