package cache_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/gather/pkg/cache"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"HTTPS://Example.ORG/Paper/", "https://example.org/Paper", true},
		{"https://example.org:443/a", "https://example.org/a", true},
		{"http://example.org:80/a", "http://example.org/a", true},
		{"http://example.org:8080/a", "http://example.org:8080/a", true},
		{"https://example.org/a?b=2&a=1#section", "https://example.org/a?a=1&b=2", true},
		{"https://example.org", "https://example.org", true},
		{"ftp://example.org/file", "", false},
		{"quantum error correction", "", false},
		{"/relative/path", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := cache.NormalizeURL(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	type input struct {
		Target  string `json:"target"`
		Options map[string]any
	}

	tests := []struct {
		name  string
		a, b  any
		equal bool
	}{
		{
			name:  "url casing and trailing slash",
			a:     input{Target: "https://Example.org/paper/"},
			b:     input{Target: "  https://example.org/paper "},
			equal: true,
		},
		{
			name:  "map key order",
			a:     map[string]any{"a": 1, "b": "x"},
			b:     map[string]any{"b": "x", "a": 1},
			equal: true,
		},
		{
			name:  "whitespace collapse",
			a:     "deep   learning\tsurvey",
			b:     "deep learning survey",
			equal: true,
		},
		{
			name:  "different inputs",
			a:     input{Target: "https://example.org/a"},
			b:     input{Target: "https://example.org/b"},
			equal: false,
		},
		{
			name:  "text case preserved",
			a:     "Deep Learning",
			b:     "deep learning",
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, err := cache.Fingerprint("fetch", tt.a)
			if err != nil {
				t.Fatal(err)
			}
			kb, err := cache.Fingerprint("fetch", tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if (ka == kb) != tt.equal {
				t.Errorf("keys %s and %s: equal=%v, want %v", ka, kb, ka == kb, tt.equal)
			}
		})
	}
}

func TestFingerprintScopedByOp(t *testing.T) {
	a := cache.MustFingerprint("classify", "x")
	b := cache.MustFingerprint("extract", "x")

	if a == b {
		t.Error("different ops share a key")
	}
	if !strings.HasPrefix(a, "classify:") {
		t.Errorf("key %q not prefixed with op", a)
	}
}

func TestFingerprintUnsupported(t *testing.T) {
	if _, err := cache.Fingerprint("op", make(chan int)); err == nil {
		t.Error("expected error for unencodable input")
	}
}
