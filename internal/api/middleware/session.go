package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/024globalconnect/portal/internal/core/ports"
)

const (
	ctxKeySession = "session"
	ctxKeySID     = "sid"

	DefaultSessionCookie = "gc_sid"
)

// SessionOptions configures the session cookie.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Session resolves the browser session from its cookie, issuing a new id
// when the cookie is missing or malformed, and places the session's manager
// on the context. The cookie is re-issued on every request so its lifetime
// slides with use.
func Session(registry ports.SessionRegistry, opts SessionOptions) echo.MiddlewareFunc {
	if opts.CookieName == "" {
		opts.CookieName = DefaultSessionCookie
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var sid string
			if ck, err := c.Cookie(opts.CookieName); err == nil {
				if _, perr := uuid.Parse(ck.Value); perr == nil {
					sid = ck.Value
				}
			}
			if sid == "" {
				sid = uuid.NewString()
			}

			c.SetCookie(&http.Cookie{
				Name:     opts.CookieName,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(opts.TTL.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			c.Set(ctxKeySID, sid)
			c.Set(ctxKeySession, registry.Acquire(c.Request().Context(), sid))
			return next(c)
		}
	}
}

// SessionFrom returns the manager placed on the context by Session, or nil.
func SessionFrom(c echo.Context) ports.SessionManager {
	m, _ := c.Get(ctxKeySession).(ports.SessionManager)
	return m
}

// SessionID returns the browser session id placed on the context by Session.
func SessionID(c echo.Context) string {
	sid, _ := c.Get(ctxKeySID).(string)
	return sid
}
