package readcache

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the sturdyc settings of a read-through cache.
type Config struct {
	// Capacity is the maximum number of cached fetch results.
	Capacity int
	// NumShards splits the cache for concurrent access.
	NumShards int
	// TTL is how long a fetch result stays valid.
	TTL time.Duration
	// EvictionPercentage is the share of entries dropped when Capacity is reached.
	EvictionPercentage int
	// EarlyRefresh refreshes hot entries before they expire. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig
	// MissingRecordStorage remembers identities that matched no row.
	MissingRecordStorage bool
	// EvictionInterval overrides how often expired entries are swept.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors the sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a small cache with a one minute TTL and
// missing-record storage enabled.
func DefaultConfig() Config {
	return Config{
		Capacity:             10000,
		NumShards:            64,
		TTL:                  time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "readcache: config error in field " + e.Field + ": " + e.Message
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	if e := c.EarlyRefresh; e != nil {
		if e.MinAsyncRefreshTime < 0 || e.MaxAsyncRefreshTime < 0 || e.SyncRefreshTime < 0 || e.RetryBaseDelay < 0 {
			return &ConfigError{Field: "EarlyRefresh", Message: "durations must be non-negative"}
		}
		if e.MinAsyncRefreshTime > e.MaxAsyncRefreshTime {
			return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must not exceed MaxAsyncRefreshTime"}
		}
	}
	return nil
}

// ToSturdycOptions converts the optional settings to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if e := c.EarlyRefresh; e != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			e.MinAsyncRefreshTime,
			e.MaxAsyncRefreshTime,
			e.SyncRefreshTime,
			e.RetryBaseDelay,
		))
	}
	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}
