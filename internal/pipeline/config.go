package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
)

// Config holds the routing and retry policy of the content pipeline.
type Config struct {
	Entry             string  `toml:"entry"`
	MaxSteps          int     `toml:"max_steps"`
	RunTimeout        string  `toml:"run_timeout"`
	RetryLimit        int     `toml:"retry_limit"`
	ClassifyThreshold float64 `toml:"classify_threshold"`
	ClassifyBytes     int     `toml:"classify_bytes"`
	BackoffInitial    string  `toml:"backoff_initial"`
	BackoffMax        string  `toml:"backoff_max"`
	PDFLinkLimit      int     `toml:"pdf_link_limit"`
	FetchTimeout      string  `toml:"fetch_timeout"`
	Headless          bool    `toml:"headless"`
	Humanize          bool    `toml:"humanize"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxSteps          string
	RunTimeout        string
	RetryLimit        string
	ClassifyThreshold string
	PDFLinkLimit      string
	FetchTimeout      string
	Headless          string
}

// RunTimeoutDuration returns RunTimeout as a time.Duration.
func (c *Config) RunTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RunTimeout)
	return d
}

// FetchTimeoutDuration returns FetchTimeout as a time.Duration.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

// FetchOptions returns the options the fetch step passes to the fetcher.
func (c *Config) FetchOptions() adapter.FetchOptions {
	return adapter.FetchOptions{
		Headless:  c.Headless,
		Humanize:  c.Humanize,
		TimeoutMS: int(c.FetchTimeoutDuration().Milliseconds()),
	}
}

// NewBackOff returns the fetch retry policy: exponential growth from
// BackoffInitial by a factor of 2, capped at BackoffMax, with 50% jitter.
func (c *Config) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval, _ = time.ParseDuration(c.BackoffInitial)
	b.MaxInterval, _ = time.ParseDuration(c.BackoffMax)
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay returns the wait before fetch attempt n+1 after n failures.
func (c *Config) Delay(n int) time.Duration {
	b := c.NewBackOff()
	var d time.Duration
	for range max(n, 1) {
		d = b.NextBackOff()
	}
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
	if overlay.Entry != "" {
		c.Entry = overlay.Entry
	}
	if overlay.MaxSteps > 0 {
		c.MaxSteps = overlay.MaxSteps
	}
	if overlay.RunTimeout != "" {
		c.RunTimeout = overlay.RunTimeout
	}
	if overlay.RetryLimit > 0 {
		c.RetryLimit = overlay.RetryLimit
	}
	if overlay.ClassifyThreshold > 0 {
		c.ClassifyThreshold = overlay.ClassifyThreshold
	}
	if overlay.ClassifyBytes > 0 {
		c.ClassifyBytes = overlay.ClassifyBytes
	}
	if overlay.BackoffInitial != "" {
		c.BackoffInitial = overlay.BackoffInitial
	}
	if overlay.BackoffMax != "" {
		c.BackoffMax = overlay.BackoffMax
	}
	if overlay.PDFLinkLimit > 0 {
		c.PDFLinkLimit = overlay.PDFLinkLimit
	}
	if overlay.FetchTimeout != "" {
		c.FetchTimeout = overlay.FetchTimeout
	}
	if overlay.Headless {
		c.Headless = true
	}
	if overlay.Humanize {
		c.Humanize = true
	}
}

func (c *Config) loadDefaults() {
	if c.Entry == "" {
		c.Entry = StepResolve
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = graph.DefaultMaxSteps
	}
	if c.RunTimeout == "" {
		c.RunTimeout = "2m"
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.ClassifyThreshold <= 0 {
		c.ClassifyThreshold = 0.4
	}
	if c.ClassifyBytes <= 0 {
		c.ClassifyBytes = 256 << 10
	}
	if c.BackoffInitial == "" {
		c.BackoffInitial = "500ms"
	}
	if c.BackoffMax == "" {
		c.BackoffMax = "10s"
	}
	if c.PDFLinkLimit <= 0 {
		c.PDFLinkLimit = 3
	}
	if c.FetchTimeout == "" {
		c.FetchTimeout = "30s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MaxSteps != "" {
		if v := os.Getenv(env.MaxSteps); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MaxSteps = n
			}
		}
	}
	if env.RunTimeout != "" {
		if v := os.Getenv(env.RunTimeout); v != "" {
			c.RunTimeout = v
		}
	}
	if env.RetryLimit != "" {
		if v := os.Getenv(env.RetryLimit); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.RetryLimit = n
			}
		}
	}
	if env.ClassifyThreshold != "" {
		if v := os.Getenv(env.ClassifyThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.ClassifyThreshold = f
			}
		}
	}
	if env.PDFLinkLimit != "" {
		if v := os.Getenv(env.PDFLinkLimit); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.PDFLinkLimit = n
			}
		}
	}
	if env.FetchTimeout != "" {
		if v := os.Getenv(env.FetchTimeout); v != "" {
			c.FetchTimeout = v
		}
	}
	if env.Headless != "" {
		if v := os.Getenv(env.Headless); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Headless = b
			}
		}
	}
}

func (c *Config) validate() error {
	for name, v := range map[string]string{
		"run_timeout":     c.RunTimeout,
		"backoff_initial": c.BackoffInitial,
		"backoff_max":     c.BackoffMax,
		"fetch_timeout":   c.FetchTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.ClassifyThreshold < 0 || c.ClassifyThreshold > 1 {
		return fmt.Errorf("classify_threshold must be within [0,1], got %v", c.ClassifyThreshold)
	}
	return nil
}
