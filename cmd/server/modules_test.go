package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/JaimeStill/gather/internal/config"
	"github.com/JaimeStill/gather/internal/infrastructure"
)

func newInfra(t *testing.T) (*config.Config, *infrastructure.Infrastructure) {
	t.Helper()
	orig, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	return cfg, infra
}

func TestRouter(t *testing.T) {
	cfg, infra := newInfra(t)

	modules, err := NewModules(context.Background(), infra, cfg)
	if err != nil {
		t.Fatal(err)
	}
	router := buildRouter(infra)
	if err := modules.Mount(router); err != nil {
		t.Fatal(err)
	}

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		return rec
	}

	if rec := get("/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz: got %d", rec.Code)
	}

	rec := get("/readyz")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "startup") {
		t.Errorf("readyz before startup: got %d %s", rec.Code, rec.Body.String())
	}

	infra.Lifecycle.WaitForStartup()
	if rec := get("/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz after startup: got %d %s", rec.Code, rec.Body.String())
	}

	infra.Lifecycle.Check("database", func(context.Context) error { return errors.New("connection refused") })
	if rec := get("/readyz"); rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("readyz with failing check: got %d %s", rec.Code, rec.Body.String())
	}

	if rec := get("/metrics"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics: got %d", rec.Code)
	}

	if rec := get("/api/graph"); rec.Code != http.StatusOK {
		t.Errorf("api graph: got %d", rec.Code)
	}
}
