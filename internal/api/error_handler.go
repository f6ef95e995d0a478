package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/api/handler"
	"github.com/024globalconnect/portal/internal/core/domain"
)

// errorResponse is the JSON envelope of every portal error.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// knownErrors maps domain errors to what the browser is told. Order matters:
// the first match wins.
var knownErrors = []struct {
	target error
	status int
	msg    string
}{
	{domain.ErrInFlight, http.StatusConflict, "a submission is already in progress"},
	{domain.ErrNoSession, http.StatusUnauthorized, "authentication required"},
	{domain.ErrRefreshRejected, http.StatusUnauthorized, "session expired"},
	{domain.ErrNoRefreshToken, http.StatusUnauthorized, "session expired"},
	{domain.ErrSessionCleared, http.StatusUnauthorized, "session expired"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{domain.ErrTransport, http.StatusBadGateway, "auth backend unavailable"},
}

// NewHTTPErrorHandler renders errors as errorResponse. Causes that are not
// known are logged and hidden behind a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := resolveError(err, log, c)
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	var fields handler.FieldErrors
	if errors.As(err, &fields) {
		return http.StatusBadRequest, errorResponse{Error: fields.Error(), Fields: fields}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprint(he.Message)}
	}

	for _, k := range knownErrors {
		if errors.Is(err, k.target) {
			return k.status, errorResponse{Error: k.msg}
		}
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
