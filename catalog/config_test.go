package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, `
dialect: postgres
dsn: postgres://localhost/shop
driver: postgres
maxDepth: 3
expand: false
lazyLoad: true
logLevel: debug
pool:
  maxOpenConns: 4
  connMaxLifetime: 5m
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 4, cfg.Pool.MaxOpenConns)
	assert.Equal(t, 5, cfg.Pool.MaxIdleConns, "unset keys keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.Pool.ConnMaxLifetime)
	assert.Equal(t, FetchOptions{Expand: false, LazyLoad: true, MaxDepth: 3}, cfg.FetchOptions())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "dialect: postgres\ndsn: postgres://localhost/shop\n")
	t.Setenv("CATALOG_DIALECT", "sqlite")
	t.Setenv("CATALOG_DSN", "file:shop.db")
	t.Setenv("CATALOG_MAX_DEPTH", "2")
	t.Setenv("CATALOG_EXPAND", "no")
	t.Setenv("CATALOG_LAZY_LOAD", "1")
	t.Setenv("CATALOG_LOG_LEVEL", " warn ")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "file:shop.db", cfg.DSN)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.False(t, cfg.Expand)
	assert.True(t, cfg.LazyLoad)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("CATALOG_DIALECT", "sqlite")
	t.Setenv("CATALOG_DSN", ":memory:")
	t.Setenv("CATALOG_MAX_DEPTH", "not-a-number")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.True(t, cfg.Expand)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "dialect: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.Dialect = "sqlite"
	valid.DSN = ":memory:"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing dialect", func(c *Config) { c.Dialect = "" }, "Dialect"},
		{"bad dialect", func(c *Config) { c.Dialect = "My SQL" }, "Dialect"},
		{"missing dsn", func(c *Config) { c.DSN = "" }, "DSN"},
		{"depth too large", func(c *Config) { c.MaxDepth = 100 }, "MaxDepth"},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }, "MaxDepth"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "LogLevel"},
		{"negative pool", func(c *Config) { c.Pool.MaxOpenConns = -1 }, "Pool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var errs validation.Errors
			require.ErrorAs(t, err, &errs)
			assert.Contains(t, errs, tt.field)
		})
	}
}

func TestOpen_UnknownDialect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialect = "oracle"
	cfg.DSN = "x"
	_, err := Open(cfg)
	assert.ErrorContains(t, err, "oracle")
}
