package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// ctxSession extracts the session manager injected by the Session middleware
// and fails fast when the route was registered without it.
func ctxSession(c echo.Context) (ports.SessionManager, error) {
	m := middleware.SessionFrom(c)
	if m == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	return m, nil
}

// isFormPost reports whether the request is a plain HTML form submission,
// which is answered with a redirect instead of JSON.
func isFormPost(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}

// safeNext returns next if it is a local absolute path, otherwise "".
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

// landingFor picks where a signed-in user goes after login: next when it is
// local and the user's role may visit it, the role's landing route otherwise.
func landingFor(u *domain.User, next string) string {
	landing := domain.LandingRoute(u)
	next = safeNext(next)
	if next == "" || u == nil {
		return landing
	}
	target, err := url.Parse(next)
	if err != nil || !domain.Admits(target.Path, u.Role) {
		return landing
	}
	return next
}
