// Package devapi is a local stand-in for the production auth backend. It
// speaks the same wire contract: a simplejwt token pair and DRF style error
// payloads.
package devapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

const (
	detailNoAccount      = "No active account found with the given credentials"
	detailInactive       = "Account is inactive"
	detailTokenInvalid   = "Token is invalid or expired"
	detailActivationLink = "Activation link is invalid or expired."
	detailAlreadyActive  = "Account is already active."
	detailUnknownEmail   = "No account is registered with this email."
	detailLoggedOut      = "Successfully logged out."

	msgRegistered = "Account created successfully. Check your email to activate it."
	msgActivated  = "Account activated. You can now log in."
	msgResent     = "Activation email sent."
	msgUpdated    = "Profile updated successfully."

	codeTokenNotValid = "token_not_valid"
)

// Handler serves the auth endpoints of the dev backend.
type Handler struct {
	accounts ports.AccountService
	log      zerolog.Logger
}

func NewHandler(accounts ports.AccountService, log zerolog.Logger) *Handler {
	return &Handler{accounts: accounts, log: log}
}

type detailResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type loginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *domain.User `json:"user"`
}

type updateResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

// Login issues a token pair. Either username or email identifies the account.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request.")
	}

	login := req.Username
	if login == "" {
		login = req.Email
	}
	pair, account, err := h.accounts.Login(c.Request().Context(), login, req.Password)
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, detailResponse{Detail: detailNoAccount})
	case errors.Is(err, domain.ErrInactiveAccount):
		return c.JSON(http.StatusUnauthorized, detailResponse{Detail: detailInactive})
	case err != nil:
		return err
	}

	h.log.Info().Str("user", account.Username).Str("role", string(account.Role)).Msg("login")
	return c.JSON(http.StatusOK, loginResponse{Access: pair.Access, Refresh: pair.Refresh, User: account.Profile()})
}

// Refresh rotates the refresh token.
func (h *Handler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request.")
	}
	if req.Refresh == "" {
		return c.JSON(http.StatusBadRequest, domain.FieldErrors{"refresh": {"This field is required."}})
	}

	pair, err := h.accounts.Refresh(c.Request().Context(), req.Refresh)
	if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrInactiveAccount) {
		return c.JSON(http.StatusUnauthorized, detailResponse{Detail: detailTokenInvalid, Code: codeTokenNotValid})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Register creates an inactive account and logs its activation link.
func (h *Handler) Register(c echo.Context) error {
	var req domain.RegistrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request.")
	}

	account, err := h.accounts.Register(c.Request().Context(), req)
	var fe domain.FieldErrors
	if errors.As(err, &fe) {
		return c.JSON(http.StatusBadRequest, fe)
	}
	if err != nil {
		return err
	}

	h.logActivation(c, account, "registered")
	return c.JSON(http.StatusCreated, messageResponse{Message: msgRegistered})
}

// Activate confirms the link sent after registration.
func (h *Handler) Activate(c echo.Context) error {
	err := h.accounts.Activate(c.Request().Context(), c.Param("uid"), c.Param("token"))
	if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrUserNotFound) {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: detailActivationLink})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgActivated})
}

// ResendActivation issues a fresh activation link for an inactive account.
func (h *Handler) ResendActivation(c echo.Context) error {
	var req resendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request.")
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, domain.FieldErrors{"email": {"This field is required."}})
	}

	account, err := h.accounts.ResendActivation(c.Request().Context(), req.Email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, detailResponse{Detail: detailUnknownEmail})
	case errors.Is(err, domain.ErrAlreadyActive):
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: detailAlreadyActive})
	case err != nil:
		return err
	}

	h.logActivation(c, account, "activation resent")
	return c.JSON(http.StatusOK, messageResponse{Message: msgResent})
}

// Logout blacklists the presented refresh token. It runs behind Bearer.
func (h *Handler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request.")
	}
	if req.Refresh == "" {
		return c.JSON(http.StatusBadRequest, domain.FieldErrors{"refresh": {"This field is required."}})
	}

	if err := h.accounts.Logout(c.Request().Context(), req.Refresh); err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return c.JSON(http.StatusBadRequest, detailResponse{Detail: detailTokenInvalid, Code: codeTokenNotValid})
		}
		return err
	}
	return c.JSON(http.StatusOK, detailResponse{Detail: detailLoggedOut})
}

// Me returns the profile of the bearer.
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.AccountFrom(c).Profile())
}

// Update applies a partial profile update for the bearer.
func (h *Handler) Update(c echo.Context) error {
	var update domain.ProfileUpdate
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request.")
	}

	account, err := h.accounts.UpdateProfile(c.Request().Context(), middleware.AccountFrom(c).ID, update)
	var fe domain.FieldErrors
	if errors.As(err, &fe) {
		return c.JSON(http.StatusBadRequest, fe)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updateResponse{Message: msgUpdated, User: account.Profile()})
}

// logActivation stands in for the activation email.
func (h *Handler) logActivation(c echo.Context, account *domain.Account, event string) {
	link := c.Scheme() + "://" + c.Request().Host + "/api/auth/activate/" + account.ID + "/" + account.ActivationToken + "/"
	h.log.Info().
		Str("user", account.Username).
		Str("email", account.Email).
		Str("activation_url", link).
		Msg(event)
}
