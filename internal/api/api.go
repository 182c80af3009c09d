// Package api assembles the API module: the run, graph, and cache routes
// behind request logging, CORS, and optional bearer token auth.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JaimeStill/gather/internal/config"
	"github.com/JaimeStill/gather/internal/infrastructure"
	"github.com/JaimeStill/gather/internal/runs"
	"github.com/JaimeStill/gather/pkg/handlers"
	"github.com/JaimeStill/gather/pkg/middleware"
	"github.com/JaimeStill/gather/pkg/module"
	"github.com/JaimeStill/gather/pkg/routes"
)

// Index is the body served at the module root.
type Index struct {
	Service string         `json:"service"`
	Version string         `json:"version"`
	Routes  []routes.Entry `json:"routes"`
}

// NewModule creates the API module. When auth is enabled ctx bounds OIDC
// provider discovery.
func NewModule(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	logger := infra.Logger.With("module", "api")

	groups := runs.NewHandler(infra.Pipeline, logger, cfg.API.MaxBodySize.Bytes()).Routes()
	index := Index{
		Service: "gather",
		Version: cfg.Version,
		Routes:  routes.Index(cfg.API.BasePath, groups...),
	}

	mux := http.NewServeMux()
	routes.Register(mux, groups...)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, index)
	})

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(middleware.Logger(logger))
	m.Use(middleware.CORS(&cfg.API.CORS))

	if cfg.API.Auth.Enabled {
		v, err := middleware.NewVerifier(ctx, &cfg.API.Auth)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		m.Use(middleware.Auth(v, cfg.API.Auth.PublicPaths, logger))
		logger.Info("bearer auth enabled", "issuer", cfg.API.Auth.Issuer)
	}

	return m, nil
}
