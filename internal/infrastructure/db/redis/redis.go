package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultIOTimeout  = 2 * time.Second
	defaultClientName = "globalconnect"
)

// Config captures the settings for the shared Redis connection used by
// session storage, the submission guard and the token blacklist.
type Config struct {
	Addr     string
	Password string
	DB       int
	// ClientName is sent with CLIENT SETNAME so connections are identifiable.
	ClientName string
	// Timeout bounds the initial ping; IOTimeout bounds every command.
	Timeout   time.Duration
	IOTimeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = defaultIOTimeout
	}
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   cfg.ClientName,
		ReadTimeout:  cfg.IOTimeout,
		WriteTimeout: cfg.IOTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return client, nil
}
