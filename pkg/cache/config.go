package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Supported backends.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendBlob     = "blob"
)

// Config holds result cache parameters.
type Config struct {
	Backend    string `toml:"backend"`
	TTL        string `toml:"ttl"`
	FailureTTL string `toml:"failure_ttl"`
	MaxEntries int    `toml:"max_entries"`
	Path       string `toml:"path"`
	Prefix     string `toml:"prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend    string
	TTL        string
	FailureTTL string
	MaxEntries string
	Path       string
	Prefix     string
}

// TTLDuration returns TTL as a time.Duration.
func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// FailureTTLDuration returns FailureTTL as a time.Duration.
func (c *Config) FailureTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.FailureTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.TTL != "" {
		c.TTL = overlay.TTL
	}
	if overlay.FailureTTL != "" {
		c.FailureTTL = overlay.FailureTTL
	}
	if overlay.MaxEntries != 0 {
		c.MaxEntries = overlay.MaxEntries
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.TTL == "" {
		c.TTL = "24h"
	}
	if c.FailureTTL == "" {
		c.FailureTTL = "30s"
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 10000
	}
	if c.Path == "" {
		c.Path = ".gather/cache"
	}
	if c.Prefix == "" {
		c.Prefix = "cache"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.TTL != "" {
		if v := os.Getenv(env.TTL); v != "" {
			c.TTL = v
		}
	}
	if env.FailureTTL != "" {
		if v := os.Getenv(env.FailureTTL); v != "" {
			c.FailureTTL = v
		}
	}
	if env.MaxEntries != "" {
		if v := os.Getenv(env.MaxEntries); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxEntries = n
			}
		}
	}
	if env.Path != "" {
		if v := os.Getenv(env.Path); v != "" {
			c.Path = v
		}
	}
	if env.Prefix != "" {
		if v := os.Getenv(env.Prefix); v != "" {
			c.Prefix = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendMemory, BackendBadger, BackendPostgres, BackendBlob:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.Backend)
	}

	ttl, err := time.ParseDuration(c.TTL)
	if err != nil {
		return fmt.Errorf("invalid ttl: %w", err)
	}
	failureTTL, err := time.ParseDuration(c.FailureTTL)
	if err != nil {
		return fmt.Errorf("invalid failure_ttl: %w", err)
	}
	if ttl > 0 && failureTTL > ttl {
		return fmt.Errorf("failure_ttl %s must not exceed ttl %s", failureTTL, ttl)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("max_entries must not be negative")
	}
	return nil
}
