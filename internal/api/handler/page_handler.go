package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/domain"
)

// PageHandler answers page routes with a JSON description of the view.
// Rendering the view is up to the client.
type PageHandler struct{}

func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

type pageView struct {
	View  string            `json:"view"`
	User  *domain.User      `json:"user,omitempty"`
	Query map[string]string `json:"query,omitempty"`
}

// Home sends a signed-in session to its landing route and everyone else to
// the public home view. It must run after middleware.Settled.
func (h *PageHandler) Home(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}
	if user := m.User(); user != nil {
		return c.Redirect(http.StatusSeeOther, domain.LandingRoute(user))
	}
	return c.JSON(http.StatusOK, pageView{View: "home"})
}

// Dashboard redirects to the landing route of the guarded user.
func (h *PageHandler) Dashboard(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, domain.LandingRoute(middleware.UserFrom(c)))
}

// Login renders the login view, or skips it for a signed-in session.
// It must run after middleware.Settled.
func (h *PageHandler) Login(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}
	if m.IsAuthenticated() {
		return c.Redirect(http.StatusSeeOther, landingFor(m.User(), c.QueryParam("next")))
	}
	return c.JSON(http.StatusOK, pageView{View: "login", Query: pickQuery(c, "next", "error", "message")})
}

// Public returns a handler for a view that needs no session.
func (h *PageHandler) Public(view string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, pageView{View: view, Query: pickQuery(c, "error", "message")})
	}
}

// Protected returns a handler for a view behind middleware.Guard.
func (h *PageHandler) Protected(view string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSON(http.StatusOK, pageView{View: view, User: middleware.UserFrom(c)})
	}
}

func pickQuery(c echo.Context, keys ...string) map[string]string {
	var out map[string]string
	for _, k := range keys {
		if v := c.QueryParam(k); v != "" {
			if out == nil {
				out = make(map[string]string, len(keys))
			}
			out[k] = v
		}
	}
	return out
}
