package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/api/handler"
	"github.com/024globalconnect/portal/internal/core/domain"
)

func TestResolveError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{echo.NewHTTPError(http.StatusBadRequest, "invalid payload"), http.StatusBadRequest},
		{domain.ErrInFlight, http.StatusConflict},
		{fmt.Errorf("update user: %w", domain.ErrNoSession), http.StatusUnauthorized},
		{fmt.Errorf("refresh auth: %w", domain.ErrRefreshRejected), http.StatusUnauthorized},
		{fmt.Errorf("refresh auth: %w", domain.ErrSessionCleared), http.StatusUnauthorized},
		{fmt.Errorf("login/: %w", domain.ErrTransport), http.StatusBadGateway},
		{handler.FieldErrors{"email": "email must be a valid email"}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		code, body := resolveError(tc.err, zerolog.Nop(), c)
		if code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, code)
		}
		if code == http.StatusInternalServerError && body.Error != "internal server error" {
			t.Fatalf("unexpected error leaked: %q", body.Error)
		}
	}
}

func TestResolveError_FieldErrorsAreListed(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/auth/register", nil), httptest.NewRecorder())

	_, body := resolveError(handler.FieldErrors{"role": "role must be one of: user vendor"}, zerolog.Nop(), c)

	if body.Fields["role"] == "" || body.Error != "role must be one of: user vendor" {
		t.Fatalf("unexpected body %+v", body)
	}
}
