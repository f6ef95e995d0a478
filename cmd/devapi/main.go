// Command devapi runs a local stand-in for the portal's auth backend. It
// speaks the same token contract, so the portal can be pointed at it with
// BACKEND_URL=http://localhost:8000/api.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/024globalconnect/portal/internal/api/handler"
	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
	"github.com/024globalconnect/portal/internal/core/service"
	"github.com/024globalconnect/portal/internal/devapi"
	"github.com/024globalconnect/portal/internal/infrastructure/db/mongo"
	"github.com/024globalconnect/portal/internal/infrastructure/db/redis"
	"github.com/024globalconnect/portal/internal/infrastructure/memstore"
	"github.com/024globalconnect/portal/internal/pkg/config"
	"github.com/024globalconnect/portal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: "devapi"})

	if cfg.DevAPI.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo      ports.AccountRepository
		blacklist ports.TokenBlacklist
		probes    []handler.Probe
	)

	switch cfg.DevAPI.UserBackend {
	case config.BackendMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			log.Fatal().Err(err).Msg("mongo unavailable")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		accounts := mongo.NewAccountRepository(db)
		if err := accounts.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("mongo indexes")
		}
		repo = accounts
		probes = append(probes, handler.MongoProbe(db))
	default:
		repo = memstore.NewAccountRepository()
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, ClientName: "globalconnect-devapi"})
		if err != nil {
			log.Fatal().Err(err).Msg("redis unavailable")
		}
		defer func() { _ = rdb.Close() }()
		blacklist = redis.NewTokenBlacklist(rdb)
		probes = append(probes, handler.RedisProbe(rdb))
	default:
		blacklist = memstore.NewTokenBlacklist()
	}

	accounts := service.NewAccountService(repo, blacklist, service.AccountServiceOptions{
		Secret:     cfg.DevAPI.JWTSecret,
		AccessTTL:  cfg.DevAPI.AccessTTL,
		RefreshTTL: cfg.DevAPI.RefreshTTL,
	})

	if cfg.DevAPI.AdminUsername != "" {
		admin, err := accounts.Seed(ctx, domain.RegistrationRequest{
			Username: cfg.DevAPI.AdminUsername,
			Email:    cfg.DevAPI.AdminEmail,
			Password: cfg.DevAPI.AdminPassword,
			Role:     domain.RoleAdmin,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("seed admin")
		}
		log.Info().Str("user", admin.Username).Msg("admin account ready")
	}

	e := devapi.NewRouter(devapi.RouterConfig{
		Accounts: accounts,
		Probes:   probes,
		Log:      logger.Component("devapi"),
	})

	go func() {
		log.Info().Str("port", cfg.DevAPI.Port).Str("users", cfg.DevAPI.UserBackend).Msg("dev auth backend listening")
		if err := e.Start(":" + cfg.DevAPI.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
