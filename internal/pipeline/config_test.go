package pipeline_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/gather/internal/pipeline"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &pipeline.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	if cfg.Entry != pipeline.StepResolve || cfg.MaxSteps != 25 || cfg.RetryLimit != 3 {
		t.Errorf("defaults: %+v", cfg)
	}
	if cfg.ClassifyThreshold != 0.4 || cfg.PDFLinkLimit != 3 || cfg.ClassifyBytes != 256<<10 {
		t.Errorf("defaults: %+v", cfg)
	}
	if cfg.RunTimeoutDuration() != 2*time.Minute {
		t.Errorf("run timeout: got %s", cfg.RunTimeoutDuration())
	}
	if opts := cfg.FetchOptions(); opts.TimeoutMS != 30000 || opts.Headless {
		t.Errorf("fetch options: %+v", opts)
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	env := &pipeline.Env{
		MaxSteps:          "TEST_PIPELINE_MAX_STEPS",
		RunTimeout:        "TEST_PIPELINE_RUN_TIMEOUT",
		RetryLimit:        "TEST_PIPELINE_RETRY_LIMIT",
		ClassifyThreshold: "TEST_PIPELINE_THRESHOLD",
		PDFLinkLimit:      "TEST_PIPELINE_PDF_LINKS",
		FetchTimeout:      "TEST_PIPELINE_FETCH_TIMEOUT",
		Headless:          "TEST_PIPELINE_HEADLESS",
	}
	t.Setenv("TEST_PIPELINE_MAX_STEPS", "40")
	t.Setenv("TEST_PIPELINE_RUN_TIMEOUT", "90s")
	t.Setenv("TEST_PIPELINE_RETRY_LIMIT", "5")
	t.Setenv("TEST_PIPELINE_THRESHOLD", "0.6")
	t.Setenv("TEST_PIPELINE_PDF_LINKS", "not-a-number")
	t.Setenv("TEST_PIPELINE_FETCH_TIMEOUT", "5s")
	t.Setenv("TEST_PIPELINE_HEADLESS", "true")

	cfg := &pipeline.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatal(err)
	}

	if cfg.MaxSteps != 40 || cfg.RetryLimit != 5 || cfg.ClassifyThreshold != 0.6 {
		t.Errorf("overrides: %+v", cfg)
	}
	if cfg.PDFLinkLimit != 3 {
		t.Errorf("invalid override should keep default, got %d", cfg.PDFLinkLimit)
	}
	if cfg.RunTimeoutDuration() != 90*time.Second || !cfg.Headless {
		t.Errorf("overrides: %+v", cfg)
	}
	if cfg.FetchOptions().TimeoutMS != 5000 {
		t.Errorf("fetch timeout: %+v", cfg.FetchOptions())
	}
}

func TestConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  pipeline.Config
	}{
		{"run timeout", pipeline.Config{RunTimeout: "soon"}},
		{"backoff", pipeline.Config{BackoffInitial: "1 second"}},
		{"fetch timeout", pipeline.Config{FetchTimeout: "30"}},
		{"threshold", pipeline.Config{ClassifyThreshold: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := &pipeline.Config{}
	if err := base.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	base.Merge(&pipeline.Config{RetryLimit: 7, Humanize: true, BackoffMax: "1m"})

	if base.RetryLimit != 7 || !base.Humanize || base.BackoffMax != "1m" {
		t.Errorf("merge: %+v", base)
	}
	if base.MaxSteps != 25 || base.Entry != pipeline.StepResolve {
		t.Errorf("merge overwrote unset fields: %+v", base)
	}
}

func TestDelay(t *testing.T) {
	cfg := &pipeline.Config{BackoffInitial: "100ms", BackoffMax: "400ms"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		failures int
		base     time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, 400 * time.Millisecond},
	}

	for _, tt := range tests {
		for range 20 {
			d := cfg.Delay(tt.failures)
			lo, hi := tt.base/2, tt.base*3/2
			if d < lo || d > hi {
				t.Errorf("delay(%d): %s outside [%s, %s]", tt.failures, d, lo, hi)
			}
		}
	}
}
