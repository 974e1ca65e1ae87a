// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"` // sqlite | postgres | memory
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"ledger.db"`
	DatabaseURL string `env:"DATABASE_URL"` // required when DB_DRIVER=postgres
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	LockBackend string        `env:"LOCK_BACKEND" envDefault:"local"` // local | redis
	RedisAddr   string        `env:"REDIS_ADDR"`                      // required when LOCK_BACKEND=redis
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	LockWait    time.Duration `env:"LOCK_WAIT" envDefault:"5s"`

	JWTSecret      string `env:"JWT_SECRET,required"`
	LotNumberWidth int    `env:"LOT_NUMBER_WIDTH" envDefault:"4"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field requirements the tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when DB_DRIVER=sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER=postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of sqlite, postgres, memory; got %q", c.DBDriver))
	}

	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when LOCK_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("LOCK_BACKEND must be local or redis; got %q", c.LockBackend))
	}

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 bytes"))
	}
	if c.LotNumberWidth < 1 || c.LotNumberWidth > 12 {
		errs = append(errs, fmt.Errorf("LOT_NUMBER_WIDTH must be between 1 and 12; got %d", c.LotNumberWidth))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
