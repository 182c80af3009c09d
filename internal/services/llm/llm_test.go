package llm_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/gather/internal/services/llm"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		text string
		n    int
		want string
	}{
		{"  short  ", 10, "short"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "h"},
		{"unbounded", 0, "unbounded"},
	}

	for _, tt := range tests {
		if got := llm.Excerpt(tt.text, tt.n); got != tt.want {
			t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
		}
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "from-env")
	t.Setenv("TEST_OPENAI_MODEL", "gpt-test")

	cfg := &llm.Config{}
	err := cfg.Finalize(&llm.Env{APIKey: "TEST_OPENAI_KEY", Model: "TEST_OPENAI_MODEL"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "from-env" || cfg.Model != "gpt-test" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.TimeoutDuration() != time.Minute || cfg.Excerpt != 6000 {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if err := (&llm.Config{}).Finalize(nil); err == nil {
		t.Error("missing api key and base url should fail")
	}
	if err := (&llm.Config{APIKey: "k", Timeout: "soon"}).Finalize(nil); err == nil {
		t.Error("invalid timeout should fail")
	}

	base := &llm.Config{Model: "a", Timeout: "10s"}
	base.Merge(&llm.Config{Model: "b"})
	if base.Model != "b" || base.Timeout != "10s" {
		t.Errorf("merge: got %+v", base)
	}
}
