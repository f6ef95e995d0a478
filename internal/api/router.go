package api

import (
	"net/url"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/024globalconnect/portal/internal/api/handler"
	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/api/proxy"
	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

// RouterConfig carries the dependencies of the portal router.
type RouterConfig struct {
	Sessions ports.SessionRegistry
	InFlight ports.InFlightGuard
	// Backend is the auth backend base URL that /api/* is proxied to.
	Backend *url.URL
	Probes  []handler.Probe

	Cookie    middleware.SessionOptions
	GuardWait time.Duration

	// Registerer and Gatherer default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "portal",
		Subsystem:  "http",
		Registerer: cfg.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health" || c.Path() == "/health/ready"
		},
	}))

	// --- Operational routes (no session) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(cfg.Probes...)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: cfg.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Everything below is bound to a browser session ---
	s := e.Group("", middleware.Session(cfg.Sessions, cfg.Cookie))

	guard := func(roles ...domain.Role) echo.MiddlewareFunc {
		return middleware.Guard(middleware.GuardOptions{Wait: cfg.GuardWait, Log: cfg.Log}, roles...)
	}
	settled := middleware.Settled(cfg.GuardWait)

	// --- Session endpoints ---
	sessionHandler := handler.NewSessionHandler(cfg.InFlight, cfg.Log)

	s.GET("/auth/session", sessionHandler.Session, settled)
	s.POST("/auth/login", sessionHandler.Login, settled)
	s.POST("/auth/register", sessionHandler.Register)
	s.POST("/auth/logout", sessionHandler.Logout)
	s.POST("/auth/refresh", sessionHandler.Refresh, settled)
	s.PATCH("/auth/me", sessionHandler.UpdateMe, settled)

	// --- Pages ---
	pages := handler.NewPageHandler()

	s.GET("/", pages.Home, settled)
	s.GET(domain.RouteLogin, pages.Login, settled)
	for _, view := range []string{"register", "contact", "aboutus", "affiliate-partner", "guest-checkout", "products", "services"} {
		s.GET("/"+view, pages.Public(view))
	}

	s.GET("/dashboard", pages.Dashboard, guard())
	s.GET(domain.RouteAffiliateDashboard, pages.Protected("affiliate-dashboard"), guard(domain.RolesFor(domain.RouteAffiliateDashboard)...))
	s.GET(domain.RouteVendorDashboard, pages.Protected("vendor-dashboard"), guard(domain.RolesFor(domain.RouteVendorDashboard)...))
	s.GET(domain.RouteServiceProviderDashboard, pages.Protected("service-provider-dashboard"), guard(domain.RolesFor(domain.RouteServiceProviderDashboard)...))
	s.GET("/profile", pages.Protected("profile"), guard())
	s.GET("/protected-test", pages.Protected("protected-test"), guard())

	admin := s.Group("/admin", guard(domain.RolesFor("/admin")...))
	admin.GET("", pages.Protected("admin-panel"))
	for _, view := range []string{"dashboard", "users", "product-monitor", "commission-logs", "payout-manager", "logs"} {
		admin.GET("/"+view, pages.Protected("admin-"+view))
	}

	// --- Authenticated API proxy ---
	backend := proxy.New(proxy.Options{Target: cfg.Backend, Log: cfg.Log})
	apiGuard := middleware.Guard(middleware.GuardOptions{Wait: cfg.GuardWait, API: true, Log: cfg.Log})

	apiGroup := s.Group(proxy.DefaultPrefix, apiGuard)
	apiGroup.Any("/*", backend.Handler)
	apiGroup.Group("/admin", middleware.RBAC(domain.RoleAdmin)).Any("/*", backend.Handler)

	return e
}
