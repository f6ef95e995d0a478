// Command portal serves the 024 Global Connect web portal: browser sessions,
// role-guarded pages and the authenticated API proxy.
//
//	@title			024 Global Connect Portal
//	@version		1.0
//	@description	Session and access control for the 024 Global Connect portal.
//	@BasePath		/
package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/024globalconnect/portal/docs"
	"github.com/024globalconnect/portal/internal/api"
	"github.com/024globalconnect/portal/internal/api/handler"
	"github.com/024globalconnect/portal/internal/api/metrics"
	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/ports"
	"github.com/024globalconnect/portal/internal/core/service"
	"github.com/024globalconnect/portal/internal/infrastructure/authapi"
	"github.com/024globalconnect/portal/internal/infrastructure/db/redis"
	"github.com/024globalconnect/portal/internal/infrastructure/memstore"
	"github.com/024globalconnect/portal/internal/pkg/config"
	"github.com/024globalconnect/portal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: "portal"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendURL, err := url.Parse(cfg.Backend.URL)
	if err != nil || backendURL.Host == "" {
		log.Fatal().Err(err).Str("url", cfg.Backend.URL).Msg("invalid BACKEND_URL")
	}

	// --- Session storage ---
	var (
		stores   ports.StoreFactory
		inflight ports.InFlightGuard
		probes   []handler.Probe
	)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, ClientName: "globalconnect-portal"})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable")
		}
		defer func() { _ = rdb.Close() }()
		stores = redis.NewSessionStore(rdb, cfg.Session.TTL)
		inflight = redis.NewInFlightGuard(rdb, cfg.Session.InFlightTTL)
		probes = append(probes, handler.RedisProbe(rdb))
	default:
		log.Warn().Msg("sessions are kept in memory and lost on restart")
		stores = memstore.NewSessionStore(cfg.Session.TTL)
		inflight = memstore.NewInFlightGuard()
	}

	// --- Sessions ---
	client := authapi.New(authapi.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Leeway:  cfg.Backend.TokenLeeway,
	})
	registry := service.NewRegistry(client, stores, logger.Component("session"), service.RegistryOptions{
		Size:    cfg.Session.RegistrySize,
		Idle:    cfg.Session.RegistryIdle,
		Manager: service.ManagerOptions{RegisterTimeout: cfg.Backend.RegisterTimeout},
	})
	metrics.RegisterActiveSessions(registry.Len)

	e := api.NewRouter(api.RouterConfig{
		Sessions: registry,
		InFlight: inflight,
		Backend:  backendURL,
		Probes:   probes,
		Cookie: middleware.SessionOptions{
			CookieName: cfg.Session.Cookie,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.CookieSecure,
		},
		GuardWait: cfg.Session.GuardWait,
		Log:       logger.Component("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.Backend.URL).Str("store", cfg.StoreBackend).Msg("portal listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
