package devapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/api/handler"
	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// RouterConfig carries the dependencies of the dev backend router.
type RouterConfig struct {
	Accounts ports.AccountService
	Probes   []handler.Probe

	// Registerer and Gatherer default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Log zerolog.Logger
}

// NewRouter builds the dev backend. All auth endpoints live under /api/ with
// the trailing slashes the Django backend uses.
func NewRouter(cfg RouterConfig) *echo.Echo {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = newErrorHandler(cfg.Log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "devapi",
		Subsystem:  "http",
		Registerer: cfg.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewHealthDependenciesHandler(cfg.Probes...).Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: cfg.Gatherer}))

	h := NewHandler(cfg.Accounts, cfg.Log)
	api := e.Group("/api")

	api.POST("/login/", h.Login)
	api.POST("/token/refresh/", h.Refresh)
	api.POST("/register/", h.Register)
	api.GET("/auth/activate/:uid/:token/", h.Activate)
	api.POST("/registration/resend-email/", h.ResendActivation)

	authed := api.Group("", middleware.Bearer(cfg.Accounts))
	authed.POST("/logout/", h.Logout)
	authed.GET("/me/", h.Me)
	authed.PUT("/update/", h.Update)
	authed.PATCH("/update/", h.Update)

	return e
}

// newErrorHandler renders errors as DRF does: {"detail": "..."}.
func newErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, detailResponse{Detail: fmt.Sprintf("%v", he.Message)})
			return
		}

		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("unhandled error")
		_ = c.JSON(http.StatusInternalServerError, detailResponse{Detail: "A server error occurred."})
	}
}
