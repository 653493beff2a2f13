// Package config loads server settings from SMARTSPLIT_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/mmynk/smartsplit/pkg/logging"
)

const (
	EnvPrefix = "SMARTSPLIT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	JWT         JWTConfig
	Auth        AuthConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Idempotency IdempotencyConfig
	Metrics     MetricsConfig
}

// Load reads the environment. Callers that want .env support load it first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("SMARTSPLIT_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.DSN == "" {
			return errors.New("SMARTSPLIT_DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported SMARTSPLIT_DB_DRIVER %q", c.DB.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("SMARTSPLIT_JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("SMARTSPLIT_JWT_TTL must be positive")
	}
	return nil
}

type AppConfig struct {
	Env             string        `envconfig:"SMARTSPLIT_APP_ENV" default:"dev"`
	Port            int           `envconfig:"SMARTSPLIT_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"SMARTSPLIT_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SMARTSPLIT_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// Addr is the listen address for the HTTP server.
func (a AppConfig) Addr() string {
	return fmt.Sprintf(":%d", a.Port)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (a AppConfig) SlogLevel() slog.Level {
	return logging.ParseLevel(a.LogLevel)
}

type DBConfig struct {
	Driver   string `envconfig:"SMARTSPLIT_DB_DRIVER" default:"sqlite"`
	Path     string `envconfig:"SMARTSPLIT_DB_PATH" default:"./data/smartsplit.db"`
	DSN      string `envconfig:"SMARTSPLIT_DB_DSN"`
	MaxConns int32  `envconfig:"SMARTSPLIT_DB_MAX_CONNS" default:"10"`
}

type JWTConfig struct {
	Secret string        `envconfig:"SMARTSPLIT_JWT_SECRET" required:"true"`
	TTL    time.Duration `envconfig:"SMARTSPLIT_JWT_TTL" default:"1h"`
}

type AuthConfig struct {
	// ExposeResetToken returns reset tokens in the ForgotPassword response.
	// Only for setups without mail delivery.
	ExposeResetToken bool          `envconfig:"SMARTSPLIT_AUTH_EXPOSE_RESET_TOKEN" default:"false"`
	ResetTokenTTL    time.Duration `envconfig:"SMARTSPLIT_AUTH_RESET_TOKEN_TTL" default:"1h"`
	BcryptCost       int           `envconfig:"SMARTSPLIT_AUTH_BCRYPT_COST" default:"10"`
}

// RedisConfig is optional. Without a URL idempotency keys are ignored.
type RedisConfig struct {
	URL         string        `envconfig:"SMARTSPLIT_REDIS_URL"`
	PoolSize    int           `envconfig:"SMARTSPLIT_REDIS_POOL_SIZE" default:"10"`
	DialTimeout time.Duration `envconfig:"SMARTSPLIT_REDIS_DIAL_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SMARTSPLIT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:3001,http://localhost:5173"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"SMARTSPLIT_IDEMPOTENCY_TTL" default:"24h"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"SMARTSPLIT_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"SMARTSPLIT_METRICS_PATH" default:"/metrics"`
}
