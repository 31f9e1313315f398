// Package catalog provides configuration loading for a Cataloger.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/CaliLuke/go-catalog/dialect"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CATALOG_"

// Config holds connection and fetch settings.
type Config struct {
	// Dialect is a registered dialect name: sqlite, postgres or mysql.
	Dialect string `yaml:"dialect"`
	// DSN is passed to the dialect's Open.
	DSN string `yaml:"dsn"`
	// Driver overrides the database/sql driver name, e.g. "postgres" for lib/pq.
	Driver string `yaml:"driver"`
	// MultiStatements sends fetch plans as one command where supported.
	MultiStatements bool `yaml:"multiStatements"`

	// MaxDepth bounds association expansion.
	MaxDepth int `yaml:"maxDepth"`
	// Expand enables association expansion in fetch plans.
	Expand bool `yaml:"expand"`
	// LazyLoad enables follow-up fetches for associations a plan did not cover.
	LazyLoad bool `yaml:"lazyLoad"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	Pool PoolConfig `yaml:"pool"`
}

// PoolConfig maps onto the database/sql pool settings. Zero values keep
// the database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DefaultConfig returns a Config with the default fetch settings.
func DefaultConfig() Config {
	return Config{
		MaxDepth: DefaultMaxDepth,
		Expand:   true,
		LogLevel: "info",
		Pool: PoolConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
	}
}

var dialectName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Dialect, validation.Required, validation.Match(dialectName)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1), validation.Max(32)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Pool),
	)
}

// Validate checks the pool settings.
func (p PoolConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxOpenConns, validation.Min(0)),
		validation.Field(&p.MaxIdleConns, validation.Min(0)),
		validation.Field(&p.ConnMaxLifetime, validation.Min(time.Duration(0))),
	)
}

// FetchOptions returns the fetch defaults described by c.
func (c Config) FetchOptions() FetchOptions {
	return FetchOptions{Expand: c.Expand, LazyLoad: c.LazyLoad, MaxDepth: c.MaxDepth}
}

// LoadConfig reads defaults, then the YAML file at path (skipped when path
// is empty), then CATALOG_* environment overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("catalog: read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("catalog: parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("catalog: invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Dialect = getenv(EnvPrefix+"DIALECT", c.Dialect)
	c.DSN = getenv(EnvPrefix+"DSN", c.DSN)
	c.Driver = getenv(EnvPrefix+"DRIVER", c.Driver)
	c.MultiStatements = getenvBool(EnvPrefix+"MULTI_STATEMENTS", c.MultiStatements)
	c.MaxDepth = getenvInt(EnvPrefix+"MAX_DEPTH", c.MaxDepth)
	c.Expand = getenvBool(EnvPrefix+"EXPAND", c.Expand)
	c.LazyLoad = getenvBool(EnvPrefix+"LAZY_LOAD", c.LazyLoad)
	c.LogLevel = getenv(EnvPrefix+"LOG_LEVEL", c.LogLevel)
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		switch strings.TrimSpace(strings.ToLower(v)) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Open validates cfg, resolves its dialect, opens and pings the database
// and returns a Cataloger. The dialect package must be imported.
func Open(cfg Config, opts ...Option) (*Cataloger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: invalid config: %w", err)
	}
	d, err := dialect.Lookup(cfg.Dialect, dialect.Options{Driver: cfg.Driver, MultiStatements: cfg.MultiStatements})
	if err != nil {
		return nil, err
	}
	db, err := d.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", cfg.Dialect, err)
	}
	if cfg.Pool.MaxOpenConns > 0 && db.Stats().MaxOpenConnections == 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: ping %s: %w", cfg.Dialect, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	base := []Option{WithLogger(logger), WithFetchOptions(cfg.FetchOptions())}
	return New(db, d, append(base, opts...)...), nil
}
