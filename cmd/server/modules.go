package main

import (
	"context"
	"net/http"

	"github.com/JaimeStill/gather/internal/api"
	"github.com/JaimeStill/gather/internal/config"
	"github.com/JaimeStill/gather/internal/infrastructure"
	"github.com/JaimeStill/gather/pkg/handlers"
	"github.com/JaimeStill/gather/pkg/module"
)

type Modules struct {
	API *module.Module
}

func NewModules(ctx context.Context, infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(ctx, cfg, infra)
	if err != nil {
		return nil, err
	}
	return &Modules{API: apiModule}, nil
}

func (m *Modules) Mount(router *module.Router) error {
	return router.Mount(m.API)
}

type probe struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, probe{Status: "ok"})
	}))

	router.HandleNative("GET /readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failed := infra.Lifecycle.Probe(r.Context())
		if len(failed) == 0 {
			handlers.RespondJSON(w, http.StatusOK, probe{Status: "ready"})
			return
		}

		checks := make(map[string]string, len(failed))
		for name, err := range failed {
			checks[name] = err.Error()
		}
		handlers.RespondJSON(w, http.StatusServiceUnavailable, probe{Status: "not ready", Checks: checks})
	}))

	router.HandleNative("GET /metrics", infra.Metrics.Handler())

	return router
}
