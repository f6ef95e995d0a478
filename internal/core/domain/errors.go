package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Session errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrTransport            = errors.New("remote auth unreachable")
	ErrRefreshRejected      = errors.New("refresh token rejected")
	ErrRegistrationRejected = errors.New("registration rejected")
	ErrNoRefreshToken       = errors.New("no refresh token")
	ErrSessionCleared       = errors.New("session cleared during refresh")
	ErrNoSession            = errors.New("no active session")
	ErrMalformedSession     = errors.New("malformed session data")
	ErrStoreMiss            = errors.New("store: key not found")
	ErrInFlight             = errors.New("request already in flight")
)

// Dev backend errors.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInactiveAccount = errors.New("account is inactive")
	ErrAlreadyActive   = errors.New("account is already active")
	ErrInvalidToken    = errors.New("invalid token")
)

// APIError is a non-2xx answer from the remote auth backend. Payload holds
// the decoded JSON body when the body was a JSON object; Kind is the
// sentinel the caller classified the failure as, and is what errors.Is sees.
type APIError struct {
	Status  int
	Payload map[string]any
	Kind    error
}

func (e *APIError) Error() string {
	msg := e.Detail()
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("remote auth: %d %s", e.Status, msg)
}

func (e *APIError) Unwrap() error { return e.Kind }

// Detail extracts the human readable message from a DRF error payload:
// "detail" first, then the first "non_field_errors" entry.
func (e *APIError) Detail() string {
	if e == nil || e.Payload == nil {
		return ""
	}
	if d, ok := e.Payload["detail"].(string); ok && d != "" {
		return d
	}
	switch nfe := e.Payload["non_field_errors"].(type) {
	case []any:
		if len(nfe) > 0 {
			if s, ok := nfe[0].(string); ok {
				return s
			}
		}
	case string:
		return nfe
	}
	return ""
}
