package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// StoreBackend selects where sessions are persisted: redis or memory.
	StoreBackend string `env:"STORE_BACKEND, default=redis"`

	Backend BackendConfig
	Session SessionConfig
	DevAPI  DevAPIConfig

	Mongo MongoConfig
	Redis RedisConfig
}

// BackendConfig points the portal at the remote auth backend.
type BackendConfig struct {
	URL             string        `env:"BACKEND_URL,      default=https://gonzaga-u98x.onrender.com/api"`
	Timeout         time.Duration `env:"BACKEND_TIMEOUT,  default=10s"`
	RegisterTimeout time.Duration `env:"REGISTER_TIMEOUT, default=30s"`
	TokenLeeway     time.Duration `env:"TOKEN_LEEWAY,     default=0s"`
}

type SessionConfig struct {
	TTL          time.Duration `env:"SESSION_TTL,    default=168h"`
	Cookie       string        `env:"SESSION_COOKIE, default=gc_sid"`
	CookieSecure bool          `env:"COOKIE_SECURE,  default=false"`
	GuardWait    time.Duration `env:"GUARD_WAIT,     default=2s"`
	RegistrySize int           `env:"REGISTRY_SIZE,  default=10000"`
	RegistryIdle time.Duration `env:"REGISTRY_IDLE,  default=30m"`
	InFlightTTL  time.Duration `env:"INFLIGHT_TTL,   default=35s"`
}

// DevAPIConfig configures the local stand-in auth backend.
type DevAPIConfig struct {
	Port          string        `env:"DEVAPI_PORT,           default=8000"`
	JWTSecret     string        `env:"JWT_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TTL,            default=5m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL,           default=24h"`
	UserBackend   string        `env:"USER_BACKEND,          default=memory"`
	AdminUsername string        `env:"DEVAPI_ADMIN_USERNAME"`
	AdminEmail    string        `env:"DEVAPI_ADMIN_EMAIL"`
	AdminPassword string        `env:"DEVAPI_ADMIN_PASSWORD"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=globalconnect"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IsDevelopment reports whether the process runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := load(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	switch c.DevAPI.UserBackend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("USER_BACKEND: unknown backend %q", c.DevAPI.UserBackend)
	}
	return nil
}
