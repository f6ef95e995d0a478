package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// stubManager is a scripted ports.SessionManager.
type stubManager struct {
	user *domain.User

	loginFn    func(domain.Credentials) ports.LoginResult
	registerFn func(domain.RegistrationRequest) ports.RegisterResult
	refreshFn  func() (*ports.RefreshResult, error)
	updateFn   func(map[string]any) error

	logouts int
	lastReg domain.RegistrationRequest
}

func (s *stubManager) Init(context.Context) {}
func (s *stubManager) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (s *stubManager) Loading() bool { return false }
func (s *stubManager) Login(_ context.Context, creds domain.Credentials) ports.LoginResult {
	return s.loginFn(creds)
}
func (s *stubManager) Register(_ context.Context, req domain.RegistrationRequest) ports.RegisterResult {
	s.lastReg = req
	return s.registerFn(req)
}
func (s *stubManager) Logout(context.Context) { s.logouts++; s.user = nil }
func (s *stubManager) RefreshAuth(context.Context) (*ports.RefreshResult, error) {
	return s.refreshFn()
}
func (s *stubManager) UpdateUser(_ context.Context, patch map[string]any) error {
	return s.updateFn(patch)
}
func (s *stubManager) User() *domain.User    { return s.user.Clone() }
func (s *stubManager) AccessToken() string   { return "" }
func (s *stubManager) TokenUsable() bool     { return s.user != nil }
func (s *stubManager) IsAuthenticated() bool { return s.user != nil }
func (s *stubManager) Snapshot() ports.SessionSnapshot {
	return ports.SessionSnapshot{User: s.User(), IsAuthenticated: s.IsAuthenticated()}
}

type stubRegistry struct{ m ports.SessionManager }

func (r stubRegistry) Acquire(context.Context, string) ports.SessionManager { return r.m }

// stubInFlight refuses every op listed in busy.
type stubInFlight struct {
	busy     map[string]bool
	err      error
	released int
}

func (g *stubInFlight) Acquire(_ context.Context, _, op string) (func(), error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.busy[op] {
		return nil, domain.ErrInFlight
	}
	return func() { g.released++ }, nil
}

// serve runs h behind the Session middleware with m as the session.
func serve(t *testing.T, m ports.SessionManager, h echo.HandlerFunc, method, target, contentType, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := middleware.Session(stubRegistry{m}, middleware.SessionOptions{})(h)(c)
	return rec, err
}
