package api_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/JaimeStill/gather/internal/api"
	"github.com/JaimeStill/gather/internal/config"
	"github.com/JaimeStill/gather/internal/infrastructure"
	"github.com/JaimeStill/gather/pkg/middleware"
)

func setup(t *testing.T) (*config.Config, *infrastructure.Infrastructure) {
	t.Helper()

	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	return cfg, infra
}

func TestNewModule(t *testing.T) {
	cfg, infra := setup(t)

	m, err := api.NewModule(context.Background(), cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	if m.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", m.Prefix())
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"index", "GET", "/api", http.StatusOK},
		{"graph", "GET", "/api/graph", http.StatusOK},
		{"cache stats", "GET", "/api/cache/stats", http.StatusOK},
		{"run without body", "POST", "/api/runs", http.StatusBadRequest},
		{"unknown route", "GET", "/api/nothing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			m.Serve(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if rec.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("request id header missing")
			}
		})
	}
}

func TestIndex(t *testing.T) {
	cfg, infra := setup(t)

	m, err := api.NewModule(context.Background(), cfg, infra)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/api", nil))

	var idx api.Index
	if err := json.NewDecoder(rec.Body).Decode(&idx); err != nil {
		t.Fatal(err)
	}
	if idx.Service != "gather" || idx.Version != cfg.Version {
		t.Errorf("index: got %+v", idx)
	}

	paths := make(map[string]bool)
	for _, e := range idx.Routes {
		paths[e.Method+" "+e.Path] = true
	}
	for _, want := range []string{"POST /api/runs", "GET /api/graph", "GET /api/cache/stats"} {
		if !paths[want] {
			t.Errorf("index missing %s: %v", want, idx.Routes)
		}
	}
}

func TestNewModuleAuthDiscoveryFails(t *testing.T) {
	cfg, infra := setup(t)

	issuer := httptest.NewServer(http.NotFoundHandler())
	defer issuer.Close()

	cfg.API.Auth = middleware.AuthConfig{Enabled: true, Issuer: issuer.URL, Audience: "gather"}
	if _, err := api.NewModule(context.Background(), cfg, infra); err == nil {
		t.Fatal("expected error when the issuer has no discovery document")
	}
}
