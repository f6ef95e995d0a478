package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/api/metrics"
	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
	"github.com/024globalconnect/portal/pkg/logger"
)

const (
	opLogin    = "login"
	opRegister = "register"

	routeRegister = "/register"
)

// Fields the browser may never overwrite on the cached user: the route
// guard trusts them.
var protectedUserFields = []string{"id", "role"}

// SessionHandler exposes the session manager of the calling browser.
type SessionHandler struct {
	inflight ports.InFlightGuard
	log      zerolog.Logger
}

func NewSessionHandler(inflight ports.InFlightGuard, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{inflight: inflight, log: log}
}

type loginRequest struct {
	Username string `json:"username" form:"username" validate:"max=150"`
	Email    string `json:"email"    form:"email"    validate:"omitempty,email"`
	Password string `json:"password" form:"password" validate:"max=128"`
	Next     string `json:"next"     form:"next"`
}

type registerRequest struct {
	FirstName        string   `json:"first_name"        form:"first_name"        validate:"max=150"`
	LastName         string   `json:"last_name"         form:"last_name"         validate:"max=150"`
	Username         string   `json:"username"          form:"username"          validate:"max=150"`
	Email            string   `json:"email"             form:"email"             validate:"omitempty,email"`
	Password         string   `json:"password"          form:"password"          validate:"max=128"`
	ConfirmPassword  string   `json:"confirm_password"  form:"confirm_password"  validate:"max=128"`
	Country          string   `json:"country"           form:"country"           validate:"max=100"`
	City             string   `json:"city"              form:"city"              validate:"max=100"`
	PromotionMethods []string `json:"promotion_methods" form:"promotion_methods"`
	Role             string   `json:"role"              form:"role"              validate:"omitempty,oneof=user vendor service_provider"`
}

func (r registerRequest) toDomain() domain.RegistrationRequest {
	return domain.RegistrationRequest{
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Username:         r.Username,
		Email:            r.Email,
		Password:         r.Password,
		ConfirmPassword:  r.ConfirmPassword,
		Country:          r.Country,
		City:             r.City,
		PromotionMethods: r.PromotionMethods,
		Role:             domain.Role(r.Role),
	}
}

type loginResponse struct {
	Success  bool              `json:"success"`
	User     *domain.User      `json:"user,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
	Errors   *ports.AuthErrors `json:"errors,omitempty"`
}

type registerResponse struct {
	Success            bool              `json:"success"`
	Message            string            `json:"message,omitempty"`
	RequiresActivation bool              `json:"requiresActivation,omitempty"`
	Redirect           string            `json:"redirect,omitempty"`
	Errors             *ports.AuthErrors `json:"errors,omitempty"`
}

type refreshResponse struct {
	User *domain.User `json:"user"`
}

type logoutResponse struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect"`
}

// Session returns the identity bundle of the calling browser.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  ports.SessionSnapshot
// @Router       /auth/session [get]
func (h *SessionHandler) Session(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, m.Snapshot())
}

// Login authenticates the browser session with the auth backend.
// Form posts are answered with a redirect to the landing route (or next).
//
// @Summary      Login
// @Tags         auth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Success      303   "Redirect to the landing route"
// @Failure      400   {object}  loginResponse
// @Failure      401   {object}  loginResponse
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  loginResponse
// @Router       /auth/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	release, err := h.acquire(c, opLogin)
	if err != nil {
		return err
	}
	defer release()

	res := m.Login(c.Request().Context(), domain.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})

	if !res.Success {
		status, result := loginFailure(res.Errors)
		metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()
		if isFormPost(c) {
			return c.Redirect(http.StatusSeeOther, withQuery(domain.RouteLogin, "error", res.Errors.Message, "next", safeNext(req.Next)))
		}
		return c.JSON(status, loginResponse{Errors: res.Errors})
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	target := landingFor(res.Data.User, req.Next)
	if isFormPost(c) {
		return c.Redirect(http.StatusSeeOther, target)
	}
	return c.JSON(http.StatusOK, loginResponse{Success: true, User: res.Data.User, Redirect: target})
}

// loginFailure maps a failed login to its status code and metric label.
func loginFailure(errs *ports.AuthErrors) (int, string) {
	var apiErr *domain.APIError
	switch {
	case errors.As(errs.Raw, &apiErr):
		return http.StatusUnauthorized, "rejected"
	case errors.Is(errs.Raw, domain.ErrTransport), errors.Is(errs.Raw, domain.ErrMalformedSession):
		return http.StatusBadGateway, "transport"
	default:
		return http.StatusBadRequest, "invalid"
	}
}

// Register submits a new account. It never signs the browser in.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  registerResponse
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  registerResponse
// @Router       /auth/register [post]
func (h *SessionHandler) Register(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return err
	}

	release, err := h.acquire(c, opRegister)
	if err != nil {
		return err
	}
	defer release()

	res := m.Register(c.Request().Context(), req.toDomain())

	if !res.Success {
		status, result := http.StatusBadRequest, "rejected"
		if errors.Is(res.Errors.Raw, domain.ErrTransport) {
			status, result = http.StatusBadGateway, "transport"
		}
		metrics.RegistrationsTotal.WithLabelValues(result).Inc()
		if isFormPost(c) {
			return c.Redirect(http.StatusSeeOther, withQuery(routeRegister, "error", res.Errors.Message))
		}
		return c.JSON(status, registerResponse{Errors: res.Errors})
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	if isFormPost(c) {
		return c.Redirect(http.StatusSeeOther, withQuery(domain.RouteLogin, "message", res.Message))
	}
	return c.JSON(http.StatusCreated, registerResponse{
		Success:            true,
		Message:            res.Message,
		RequiresActivation: res.RequiresActivation,
		Redirect:           domain.RouteLogin,
	})
}

// Logout signs the browser session out. It always succeeds.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  logoutResponse
// @Router       /auth/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}

	m.Logout(c.Request().Context())
	metrics.LogoutTotal.Inc()

	if isFormPost(c) {
		return c.Redirect(http.StatusSeeOther, domain.RouteLogin)
	}
	return c.JSON(http.StatusOK, logoutResponse{Success: true, Redirect: domain.RouteLogin})
}

// Refresh obtains a new access token for the session. The token itself stays
// on the server; only the user is returned.
//
// @Summary      Refresh the session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  refreshResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *SessionHandler) Refresh(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}

	res, err := m.RefreshAuth(c.Request().Context())
	if err != nil {
		result := "rejected"
		if errors.Is(err, domain.ErrSessionCleared) {
			result = "superseded"
		}
		metrics.RefreshTotal.WithLabelValues("explicit", result).Inc()
		return err
	}

	metrics.RefreshTotal.WithLabelValues("explicit", "success").Inc()
	return c.JSON(http.StatusOK, refreshResponse{User: res.User})
}

// UpdateMe merges profile fields the backend already accepted into the
// cached user.
//
// @Summary      Update the cached user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      map[string]any  true  "Profile fields"
// @Success      200   {object}  ports.SessionSnapshot
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/me [patch]
func (h *SessionHandler) UpdateMe(c echo.Context) error {
	m, err := ctxSession(c)
	if err != nil {
		return err
	}

	var patch map[string]any
	if err := c.Bind(&patch); err != nil || len(patch) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	for _, k := range protectedUserFields {
		if _, ok := patch[k]; ok {
			return echo.NewHTTPError(http.StatusBadRequest, k+" cannot be changed")
		}
	}

	if err := m.UpdateUser(c.Request().Context(), patch); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m.Snapshot())
}

// acquire takes the per-session submission slot for op. A guard that
// cannot be reached does not block the submission.
func (h *SessionHandler) acquire(c echo.Context, op string) (func(), error) {
	sid := middleware.SessionID(c)
	release, err := h.inflight.Acquire(c.Request().Context(), sid, op)
	switch {
	case errors.Is(err, domain.ErrInFlight):
		metrics.SubmissionsRejectedTotal.WithLabelValues(op).Inc()
		return nil, err
	case err != nil:
		h.log.Warn().Err(err).Str("sid", logger.SessionID(sid)).Str("op", op).Msg("submission guard unavailable")
		return func() {}, nil
	}
	return release, nil
}

// withQuery appends the non-empty key/value pairs to path.
func withQuery(path string, kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
