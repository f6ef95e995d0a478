package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/api/metrics"
	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
	"github.com/024globalconnect/portal/pkg/logger"
)

const (
	ctxKeyUser = "user"
	ctxKeyRole = "role"

	DefaultGuardWait = 2 * time.Second

	pollInterval = 25 * time.Millisecond
)

// GuardOptions configures Guard.
type GuardOptions struct {
	// Wait is how long a request waits for a loading session to settle
	// before the loading state is rendered.
	Wait time.Duration
	// LoginPath is where denied page requests are redirected.
	LoginPath string
	// API makes denials answer 401 JSON instead of redirecting.
	API bool
	Log zerolog.Logger
}

type loadingResponse struct {
	Status string `json:"status"`
}

// Guard admits a request only for an authenticated session whose role is in
// allowedRoles; an empty list admits any role. While the session is loading
// it answers 503 without deciding either way. A session that still has a
// user but whose access token is no longer usable gets one refresh attempt
// before it is denied.
func Guard(opts GuardOptions, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	if opts.Wait <= 0 {
		opts.Wait = DefaultGuardWait
	}
	if opts.LoginPath == "" {
		opts.LoginPath = domain.RouteLogin
	}
	allowed := NewRoleSet(allowedRoles...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m := SessionFrom(c)
			if m == nil {
				return errors.New("guard: no session on context")
			}

			ctx := c.Request().Context()
			if !waitSettled(ctx, m, opts.Wait) {
				metrics.GuardDecisionsTotal.WithLabelValues("loading").Inc()
				return renderLoading(c)
			}

			user := m.User()
			if user == nil {
				metrics.GuardDecisionsTotal.WithLabelValues("deny").Inc()
				return deny(c, opts, http.StatusUnauthorized, true)
			}

			if !m.TokenUsable() {
				res, err := m.RefreshAuth(ctx)
				if err != nil {
					metrics.RefreshTotal.WithLabelValues("guard", refreshResult(err)).Inc()
					opts.Log.Info().Err(err).Str("sid", logger.SessionID(SessionID(c))).Msg("guard refresh failed")
					metrics.GuardDecisionsTotal.WithLabelValues("deny").Inc()
					return deny(c, opts, http.StatusUnauthorized, true)
				}
				metrics.RefreshTotal.WithLabelValues("guard", "success").Inc()
				user = res.User
			}

			if !allowed.Allows(user.Role) {
				metrics.GuardDecisionsTotal.WithLabelValues("forbidden_role").Inc()
				opts.Log.Debug().
					Str("sid", logger.SessionID(SessionID(c))).
					Str("role", string(user.Role)).
					Str("path", c.Path()).
					Msg("role not allowed")
				// Signing in again cannot change the role, so coming back
				// here after login would only bounce again.
				return deny(c, opts, http.StatusForbidden, false)
			}

			metrics.GuardDecisionsTotal.WithLabelValues("allow").Inc()
			c.Set(ctxKeyUser, user)
			c.Set(ctxKeyRole, string(user.Role))
			return next(c)
		}
	}
}

// Settled holds a request until its session stops loading and renders the
// loading state when it does not. It makes no access decision; public pages
// whose content depends on the session use it.
func Settled(wait time.Duration) echo.MiddlewareFunc {
	if wait <= 0 {
		wait = DefaultGuardWait
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m := SessionFrom(c)
			if m == nil {
				return errors.New("settled: no session on context")
			}
			if !waitSettled(c.Request().Context(), m, wait) {
				return renderLoading(c)
			}
			return next(c)
		}
	}
}

func renderLoading(c echo.Context) error {
	c.Response().Header().Set("Retry-After", "1")
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusServiceUnavailable, loadingResponse{Status: "loading"})
}

// UserFrom returns the user placed on the context by Guard, or nil.
func UserFrom(c echo.Context) *domain.User {
	u, _ := c.Get(ctxKeyUser).(*domain.User)
	return u
}

// deny answers a refused request. Page requests are sent to the login page,
// which passes an authenticated session on to its landing route; keepNext
// asks it to come back here afterwards.
func deny(c echo.Context, opts GuardOptions, status int, keepNext bool) error {
	if opts.API {
		msg := "authentication required"
		if status == http.StatusForbidden {
			msg = "forbidden"
		}
		return c.JSON(status, map[string]string{"error": msg})
	}
	target := opts.LoginPath
	if keepNext {
		target += "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// waitSettled waits up to wait for m to stop loading: first for Init, then
// for any in-flight login, registration or logout.
func waitSettled(ctx context.Context, m ports.SessionManager, wait time.Duration) bool {
	if !m.Loading() {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-m.Ready():
	case <-timer.C:
		return !m.Loading()
	case <-ctx.Done():
		return false
	}

	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for m.Loading() {
		select {
		case <-tick.C:
		case <-timer.C:
			return !m.Loading()
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func refreshResult(err error) string {
	if errors.Is(err, domain.ErrSessionCleared) {
		return "superseded"
	}
	return "rejected"
}
