package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/gather/pkg/formatting"
	"github.com/JaimeStill/gather/pkg/middleware"
	"github.com/JaimeStill/gather/pkg/module"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "GATHER_CORS_ENABLED",
	Origins:          "GATHER_CORS_ORIGINS",
	AllowedMethods:   "GATHER_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "GATHER_CORS_ALLOWED_HEADERS",
	AllowCredentials: "GATHER_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "GATHER_CORS_MAX_AGE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:  "GATHER_AUTH_ENABLED",
	Issuer:   "GATHER_AUTH_ISSUER",
	Audience: "GATHER_AUTH_AUDIENCE",
}

// APIConfig holds API routing, request limits, CORS, and auth settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize formatting.Size       `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Auth        middleware.AuthConfig `toml:"auth"`
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and auth configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := module.ValidatePrefix(c.BasePath); err != nil {
		return fmt.Errorf("base_path: %w", err)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize > 0 {
		c.MaxBodySize = overlay.MaxBodySize
	}
	c.CORS.Merge(&overlay.CORS)
	c.Auth.Merge(&overlay.Auth)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = 64 << 10
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("GATHER_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("GATHER_API_MAX_BODY_SIZE"); v != "" {
		if size, err := formatting.ParseSize(v); err == nil {
			c.MaxBodySize = size
		}
	}
}
