package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/gather/internal/prompts"
	"github.com/JaimeStill/gather/internal/services/llm"
	"github.com/JaimeStill/gather/pkg/formatting"
)

// Adapter implementations selectable by name.
const (
	ClassifierHeuristic = "heuristic"
	ClassifierOpenAI    = "openai"

	LinksScan   = "scan"
	LinksOpenAI = "openai"
	LinksNone   = "none"
)

const (
	EnvServicesClassifier = "GATHER_SERVICES_CLASSIFIER"
	EnvServicesLinkFinder = "GATHER_SERVICES_LINK_FINDER"
	EnvRegistryMailto     = "GATHER_REGISTRY_MAILTO"
	EnvRegistryRPS        = "GATHER_REGISTRY_RPS"
	EnvFetchUserAgent     = "GATHER_FETCH_USER_AGENT"
	EnvFetchMaxBytes      = "GATHER_FETCH_MAX_BYTES"
	EnvFetchBrowserPath   = "GATHER_FETCH_BROWSER_PATH"
	EnvTranscribePath     = "GATHER_TRANSCRIBE_PATH"
	EnvTranscribeLanguage = "GATHER_TRANSCRIBE_LANGUAGE"
	EnvExportEnabled      = "GATHER_EXPORT_ENABLED"
	EnvExportPrefix       = "GATHER_EXPORT_PREFIX"
)

var openAIEnv = &llm.Env{
	APIKey:  "GATHER_OPENAI_API_KEY",
	BaseURL: "GATHER_OPENAI_BASE_URL",
	Model:   "GATHER_OPENAI_MODEL",
	Timeout: "GATHER_OPENAI_TIMEOUT",
}

// ServicesConfig selects and tunes the adapters the pipeline calls.
type ServicesConfig struct {
	Classifier string            `toml:"classifier"`
	LinkFinder string            `toml:"link_finder"`
	OpenAI     llm.Config        `toml:"openai"`
	Registry   RegistryConfig    `toml:"registry"`
	Fetch      FetchConfig       `toml:"fetch"`
	Transcribe TranscribeConfig  `toml:"transcribe"`
	Extract    ExtractConfig     `toml:"extract"`
	Export     ExportConfig      `toml:"export"`
	Prompts    map[string]string `toml:"prompts"`
}

// RegistryConfig tunes the OpenAlex and Crossref clients.
type RegistryConfig struct {
	Disabled    bool    `toml:"disabled"`
	OpenAlexURL string  `toml:"openalex_url"`
	CrossrefURL string  `toml:"crossref_url"`
	Mailto      string  `toml:"mailto"`
	UserAgent   string  `toml:"user_agent"`
	RPS         float64 `toml:"rps"`
	Retries     int     `toml:"retries"`
	Timeout     string  `toml:"timeout"`
}

// FetchConfig tunes the HTTP and headless browser fetchers. An empty
// BrowserPath disables headless fetching.
type FetchConfig struct {
	UserAgent    string          `toml:"user_agent"`
	MaxBytes     formatting.Size `toml:"max_bytes"`
	BrowserPath  string          `toml:"browser_path"`
	BrowserArgs  []string        `toml:"browser_args"`
	HumanizeArgs []string        `toml:"humanize_args"`
}

// TranscribeConfig configures the yt-dlp transcriber.
type TranscribeConfig struct {
	Disabled bool   `toml:"disabled"`
	Path     string `toml:"path"`
	Language string `toml:"language"`
	Timeout  string `toml:"timeout"`
}

// ExtractConfig tunes text extraction.
type ExtractConfig struct {
	MinWords    int `toml:"min_words"`
	PDFMaxPages int `toml:"pdf_max_pages"`
}

// ExportConfig configures result upload to blob storage.
type ExportConfig struct {
	Enabled bool   `toml:"enabled"`
	Prefix  string `toml:"prefix"`
	Timeout string `toml:"timeout"`
}

// UsesOpenAI reports whether any selected adapter calls the model endpoint.
func (c *ServicesConfig) UsesOpenAI() bool {
	return c.Classifier == ClassifierOpenAI || c.LinkFinder == LinksOpenAI
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *RegistryConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *TranscribeConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *ExportConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
// The OpenAI endpoint is only finalized when an adapter uses it.
func (c *ServicesConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	if err := c.validate(); err != nil {
		return err
	}
	if c.UsesOpenAI() {
		if err := c.OpenAI.Finalize(openAIEnv); err != nil {
			return fmt.Errorf("openai: %w", err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *ServicesConfig) Merge(overlay *ServicesConfig) {
	if overlay.Classifier != "" {
		c.Classifier = overlay.Classifier
	}
	if overlay.LinkFinder != "" {
		c.LinkFinder = overlay.LinkFinder
	}
	c.OpenAI.Merge(&overlay.OpenAI)

	r, o := &c.Registry, &overlay.Registry
	if o.Disabled {
		r.Disabled = true
	}
	if o.OpenAlexURL != "" {
		r.OpenAlexURL = o.OpenAlexURL
	}
	if o.CrossrefURL != "" {
		r.CrossrefURL = o.CrossrefURL
	}
	if o.Mailto != "" {
		r.Mailto = o.Mailto
	}
	if o.UserAgent != "" {
		r.UserAgent = o.UserAgent
	}
	if o.RPS > 0 {
		r.RPS = o.RPS
	}
	if o.Retries > 0 {
		r.Retries = o.Retries
	}
	if o.Timeout != "" {
		r.Timeout = o.Timeout
	}

	f, of := &c.Fetch, &overlay.Fetch
	if of.UserAgent != "" {
		f.UserAgent = of.UserAgent
	}
	if of.MaxBytes > 0 {
		f.MaxBytes = of.MaxBytes
	}
	if of.BrowserPath != "" {
		f.BrowserPath = of.BrowserPath
	}
	if of.BrowserArgs != nil {
		f.BrowserArgs = of.BrowserArgs
	}
	if of.HumanizeArgs != nil {
		f.HumanizeArgs = of.HumanizeArgs
	}

	if overlay.Transcribe.Disabled {
		c.Transcribe.Disabled = true
	}
	if overlay.Transcribe.Path != "" {
		c.Transcribe.Path = overlay.Transcribe.Path
	}
	if overlay.Transcribe.Language != "" {
		c.Transcribe.Language = overlay.Transcribe.Language
	}
	if overlay.Transcribe.Timeout != "" {
		c.Transcribe.Timeout = overlay.Transcribe.Timeout
	}

	if overlay.Extract.MinWords > 0 {
		c.Extract.MinWords = overlay.Extract.MinWords
	}
	if overlay.Extract.PDFMaxPages > 0 {
		c.Extract.PDFMaxPages = overlay.Extract.PDFMaxPages
	}

	if overlay.Export.Enabled {
		c.Export.Enabled = true
	}
	if overlay.Export.Prefix != "" {
		c.Export.Prefix = overlay.Export.Prefix
	}
	if overlay.Export.Timeout != "" {
		c.Export.Timeout = overlay.Export.Timeout
	}

	if len(overlay.Prompts) > 0 {
		if c.Prompts == nil {
			c.Prompts = make(map[string]string, len(overlay.Prompts))
		}
		for k, v := range overlay.Prompts {
			c.Prompts[k] = v
		}
	}
}

func (c *ServicesConfig) loadDefaults() {
	if c.Classifier == "" {
		c.Classifier = ClassifierHeuristic
	}
	if c.LinkFinder == "" {
		c.LinkFinder = LinksScan
	}
	if c.Registry.OpenAlexURL == "" {
		c.Registry.OpenAlexURL = "https://api.openalex.org"
	}
	if c.Registry.CrossrefURL == "" {
		c.Registry.CrossrefURL = "https://api.crossref.org"
	}
	if c.Registry.UserAgent == "" {
		c.Registry.UserAgent = "gather/0.1"
	}
	if c.Registry.RPS <= 0 {
		c.Registry.RPS = 5
	}
	if c.Registry.Retries <= 0 {
		c.Registry.Retries = 2
	}
	if c.Registry.Timeout == "" {
		c.Registry.Timeout = "15s"
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 50 << 20
	}
	if c.Fetch.BrowserPath != "" && len(c.Fetch.BrowserArgs) == 0 {
		c.Fetch.BrowserArgs = []string{"--headless=new", "--disable-gpu", "--dump-dom"}
	}
	if c.Transcribe.Path == "" {
		c.Transcribe.Path = "yt-dlp"
	}
	if c.Transcribe.Language == "" {
		c.Transcribe.Language = "en"
	}
	if c.Transcribe.Timeout == "" {
		c.Transcribe.Timeout = "2m"
	}
	if c.Extract.MinWords <= 0 {
		c.Extract.MinWords = 50
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = "results"
	}
	if c.Export.Timeout == "" {
		c.Export.Timeout = "30s"
	}
}

func (c *ServicesConfig) loadEnv() {
	if v := os.Getenv(EnvServicesClassifier); v != "" {
		c.Classifier = v
	}
	if v := os.Getenv(EnvServicesLinkFinder); v != "" {
		c.LinkFinder = v
	}
	if v := os.Getenv(EnvRegistryMailto); v != "" {
		c.Registry.Mailto = v
	}
	if v := os.Getenv(EnvRegistryRPS); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Registry.RPS = f
		}
	}
	if v := os.Getenv(EnvFetchUserAgent); v != "" {
		c.Fetch.UserAgent = v
	}
	if v := os.Getenv(EnvFetchMaxBytes); v != "" {
		if size, err := formatting.ParseSize(v); err == nil {
			c.Fetch.MaxBytes = size
		}
	}
	if v := os.Getenv(EnvFetchBrowserPath); v != "" {
		c.Fetch.BrowserPath = v
		if len(c.Fetch.BrowserArgs) == 0 {
			c.Fetch.BrowserArgs = []string{"--headless=new", "--disable-gpu", "--dump-dom"}
		}
	}
	if v := os.Getenv(EnvTranscribePath); v != "" {
		c.Transcribe.Path = v
	}
	if v := os.Getenv(EnvTranscribeLanguage); v != "" {
		c.Transcribe.Language = v
	}
	if v := os.Getenv(EnvExportEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Export.Enabled = b
		}
	}
	if v := os.Getenv(EnvExportPrefix); v != "" {
		c.Export.Prefix = v
	}
}

func (c *ServicesConfig) validate() error {
	switch c.Classifier {
	case ClassifierHeuristic, ClassifierOpenAI:
	default:
		return fmt.Errorf("unknown classifier %q", c.Classifier)
	}
	switch c.LinkFinder {
	case LinksScan, LinksOpenAI, LinksNone:
	default:
		return fmt.Errorf("unknown link_finder %q", c.LinkFinder)
	}
	for name, v := range map[string]string{
		"registry.timeout":   c.Registry.Timeout,
		"transcribe.timeout": c.Transcribe.Timeout,
		"export.timeout":     c.Export.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if _, err := prompts.NewSet(c.Prompts); err != nil {
		return fmt.Errorf("prompts: %w", err)
	}
	return nil
}
