package ports

import (
	"context"

	"github.com/024globalconnect/portal/internal/core/domain"
)

// AccountService is the dev auth backend: it speaks the same token contract
// as the production backend.
type AccountService interface {
	Register(ctx context.Context, req domain.RegistrationRequest) (*domain.Account, error)
	Activate(ctx context.Context, id, token string) error
	ResendActivation(ctx context.Context, email string) (*domain.Account, error)
	Login(ctx context.Context, login, password string) (domain.TokenPair, *domain.Account, error)
	Refresh(ctx context.Context, refresh string) (domain.TokenPair, error)
	Logout(ctx context.Context, refresh string) error
	Authenticate(ctx context.Context, access string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error)
}
