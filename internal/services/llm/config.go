package llm

import (
	"fmt"
	"os"
	"time"
)

// Config configures the OpenAI-compatible model endpoint.
type Config struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	Organization string `toml:"organization"`
	Model        string `toml:"model"`
	Timeout      string `toml:"timeout"`
	Excerpt      int    `toml:"excerpt"`
}

// Env maps environment variable names for overrides.
type Env struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout string
}

// TimeoutDuration parses Timeout into a duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Organization != "" {
		c.Organization = overlay.Organization
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.Excerpt != 0 {
		c.Excerpt = overlay.Excerpt
	}
}

func (c *Config) loadDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
	if c.Excerpt <= 0 {
		c.Excerpt = 6000
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" && c.BaseURL == "" {
		return fmt.Errorf("api_key required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
