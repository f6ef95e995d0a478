package ports

import (
	"context"

	"github.com/024globalconnect/portal/internal/core/domain"
)

// AuthErrors is the error half of a login or registration result.
type AuthErrors struct {
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
	Raw     error          `json:"-"`
}

// LoginResult is returned by SessionManager.Login. Landing is the
// role-determined route the caller should navigate to on success.
type LoginResult struct {
	Success bool
	Data    *domain.Session
	Landing string
	Errors  *AuthErrors
}

// RegisterResult is returned by SessionManager.Register.
type RegisterResult struct {
	Success            bool
	Message            string
	RequiresActivation bool
	Errors             *AuthErrors
}

// RefreshResult is returned by a successful SessionManager.RefreshAuth.
type RefreshResult struct {
	AccessToken string
	User        *domain.User
}

// SessionSnapshot is the identity bundle exposed to views.
type SessionSnapshot struct {
	User            *domain.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Loading         bool         `json:"loading"`
}

// SessionManager owns one client session. Login, Register and Logout never
// fail; RefreshAuth returns an error so callers can tell "retry after
// refresh" from "give up and redirect".
type SessionManager interface {
	Init(ctx context.Context)
	Ready() <-chan struct{}
	Loading() bool

	Login(ctx context.Context, creds domain.Credentials) LoginResult
	Register(ctx context.Context, req domain.RegistrationRequest) RegisterResult
	Logout(ctx context.Context)
	RefreshAuth(ctx context.Context) (*RefreshResult, error)
	UpdateUser(ctx context.Context, patch map[string]any) error

	User() *domain.User
	AccessToken() string
	TokenUsable() bool
	IsAuthenticated() bool
	Snapshot() SessionSnapshot
}

// SessionRegistry resolves the manager for a browser session id.
type SessionRegistry interface {
	Acquire(ctx context.Context, sid string) SessionManager
}
