package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

const ctxKeyAccount = "account"

// Bearer validates the access token against the dev auth backend and
// injects the account into context.
func Bearer(accounts ports.AccountService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must contain two space-delimited values")
			}

			account, err := accounts.Authenticate(c.Request().Context(), parts[1])
			switch {
			case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrInactiveAccount):
				return echo.NewHTTPError(http.StatusUnauthorized, "Given token not valid for any token type")
			case err != nil:
				return err
			}

			c.Set(ctxKeyAccount, account)
			c.Set(ctxKeyRole, string(account.Role))
			return next(c)
		}
	}
}

// AccountFrom returns the account placed on the context by Bearer, or nil.
func AccountFrom(c echo.Context) *domain.Account {
	a, _ := c.Get(ctxKeyAccount).(*domain.Account)
	return a
}
