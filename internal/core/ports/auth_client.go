package ports

import (
	"context"
	"time"

	"github.com/024globalconnect/portal/internal/core/domain"
)

// RegisterOptions tunes a single registration call.
type RegisterOptions struct {
	// Timeout overrides the client's default request timeout. Registration
	// can trigger slow provisioning on the backend (activation email).
	Timeout time.Duration
}

// RegisterResponse is a 2xx answer from the registration endpoint.
type RegisterResponse struct {
	// Success is false only when the backend answered 2xx but flagged the
	// body with "success": false.
	Success bool
	Message string
	Errors  map[string]any
}

// AuthClient is the remote auth backend as seen by a session.
type AuthClient interface {
	// VerifyCredentials exchanges a username (or email) and password for a
	// token pair and the user record.
	VerifyCredentials(ctx context.Context, username, password string) (*domain.Session, error)
	Register(ctx context.Context, req domain.RegistrationRequest, opts RegisterOptions) (*RegisterResponse, error)
	// InvalidateSession blacklists the refresh token server-side.
	InvalidateSession(ctx context.Context, accessToken, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshBundle, error)
	// CheckValidity is a cheap local check of whether accessToken is still usable.
	CheckValidity(accessToken string) bool
}
