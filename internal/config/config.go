// Package config loads gather configuration from TOML files and GATHER_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/pkg/cache"
	"github.com/JaimeStill/gather/pkg/database"
	"github.com/JaimeStill/gather/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvGatherEnv             = "GATHER_ENV"
	EnvGatherConfig          = "GATHER_CONFIG"
	EnvGatherShutdownTimeout = "GATHER_SHUTDOWN_TIMEOUT"
	EnvGatherVersion         = "GATHER_VERSION"
)

var databaseEnv = &database.Env{
	URL:             "GATHER_DB_URL",
	Host:            "GATHER_DB_HOST",
	Port:            "GATHER_DB_PORT",
	Name:            "GATHER_DB_NAME",
	User:            "GATHER_DB_USER",
	Password:        "GATHER_DB_PASSWORD",
	SSLMode:         "GATHER_DB_SSL_MODE",
	MaxOpenConns:    "GATHER_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "GATHER_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "GATHER_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "GATHER_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "GATHER_STORAGE_CONTAINER_NAME",
	ConnectionString: "GATHER_STORAGE_CONNECTION_STRING",
	AccountURL:       "GATHER_STORAGE_ACCOUNT_URL",
}

var cacheEnv = &cache.Env{
	Backend:    "GATHER_CACHE_BACKEND",
	TTL:        "GATHER_CACHE_TTL",
	FailureTTL: "GATHER_CACHE_FAILURE_TTL",
	MaxEntries: "GATHER_CACHE_MAX_ENTRIES",
	Path:       "GATHER_CACHE_PATH",
	Prefix:     "GATHER_CACHE_PREFIX",
}

var pipelineEnv = &pipeline.Env{
	MaxSteps:          "GATHER_PIPELINE_MAX_STEPS",
	RunTimeout:        "GATHER_PIPELINE_RUN_TIMEOUT",
	RetryLimit:        "GATHER_PIPELINE_RETRY_LIMIT",
	ClassifyThreshold: "GATHER_PIPELINE_CLASSIFY_THRESHOLD",
	PDFLinkLimit:      "GATHER_PIPELINE_PDF_LINK_LIMIT",
	FetchTimeout:      "GATHER_PIPELINE_FETCH_TIMEOUT",
	Headless:          "GATHER_PIPELINE_HEADLESS",
}

// Config is the root configuration for the gather service and CLI.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	API             APIConfig       `toml:"api"`
	Log             LogConfig       `toml:"log"`
	Pipeline        pipeline.Config `toml:"pipeline"`
	Cache           cache.Config    `toml:"cache"`
	Services        ServicesConfig  `toml:"services"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the GATHER_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvGatherEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// NeedsDatabase reports whether a configured component uses PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.Cache.Backend == cache.BackendPostgres
}

// NeedsStorage reports whether a configured component uses blob storage.
func (c *Config) NeedsStorage() bool {
	return c.Cache.Backend == cache.BackendBlob || c.Services.Export.Enabled
}

// Load reads the base config (GATHER_CONFIG or config.toml, if present),
// applies any environment overlay, and finalizes all values. Without a
// file, defaults and environment variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	base := BaseConfigFile
	if v := os.Getenv(EnvGatherConfig); v != "" {
		base = v
	}
	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if base != BaseConfigFile {
		return nil, fmt.Errorf("config file %s: %w", base, err)
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.API.Merge(&overlay.API)
	c.Log.Merge(&overlay.Log)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Cache.Merge(&overlay.Cache)
	c.Services.Merge(&overlay.Services)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Log.Finalize(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Pipeline.Finalize(pipelineEnv); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Cache.Finalize(cacheEnv); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Services.Finalize(); err != nil {
		return fmt.Errorf("services: %w", err)
	}
	if c.NeedsDatabase() {
		if err := c.FinalizeDatabase(); err != nil {
			return err
		}
	}
	if c.NeedsStorage() {
		if err := c.Storage.Finalize(storageEnv); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	return nil
}

// FinalizeDatabase finalizes the database config whether or not a
// configured component needs it. The migrate command uses it.
func (c *Config) FinalizeDatabase() error {
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvGatherShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvGatherVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvGatherEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
