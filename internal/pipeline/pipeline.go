// Package pipeline implements the content-acquisition graph: a target is
// resolved, fetched with retries, classified, and routed to a science,
// video, article or generic step before a structured Result is composed
// and optionally exported.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/pkg/cache"
)

// GraphName identifies the content graph in logs and metrics.
const GraphName = "gather"

// RunRequest is one pipeline invocation. Zero values fall back to the
// system configuration; a nil Cache uses the system cache.
type RunRequest struct {
	RunID      string
	Entry      string
	Target     string
	MaxSteps   int
	RunTimeout time.Duration
	Cache      *cache.Cache
}

// System runs the content graph over a shared dependency bundle and cache.
// It is safe for concurrent runs.
type System struct {
	cfg    Config
	deps   Deps
	cache  *cache.Cache
	runner *graph.Runner[Deps]
}

// Build constructs and validates the content graph.
func Build(cfg *Config) (*graph.Graph[Deps], error) {
	g, err := graph.New(GraphName,
		ResolveStep(),
		FetchStep(cfg),
		ClassifyStep(cfg),
		ScienceStep(cfg),
		VideoStep(),
		ArticleStep(),
		GenericStep(),
		DiscoverStep(),
		FinalizeStep(cfg),
		ExportStep(cfg),
	)
	if err != nil {
		return nil, fmt.Errorf("build %s graph: %w", GraphName, err)
	}
	return g, nil
}

// New creates a System from a finalized cfg. c may be nil to run without a
// result cache.
func New(cfg *Config, deps Deps, c *cache.Cache, logger *slog.Logger, opts ...graph.RunnerOption) (*System, error) {
	g, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	if _, ok := g.Step(cfg.Entry); !ok {
		return nil, fmt.Errorf("%w: unknown entry step %q", ErrInvalidRequest, cfg.Entry)
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}

	return &System{
		cfg:    *cfg,
		deps:   deps,
		cache:  c,
		runner: graph.NewRunner(g, logger, opts...),
	}, nil
}

// Run executes one run and always returns an Outcome. A successful Outcome
// carries a *Result payload.
func (s *System) Run(ctx context.Context, req RunRequest) *graph.Outcome {
	entry := req.Entry
	if entry == "" {
		entry = s.cfg.Entry
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = s.cfg.MaxSteps
	}
	timeout := req.RunTimeout
	if timeout <= 0 {
		timeout = s.cfg.RunTimeoutDuration()
	}
	c := req.Cache
	if c == nil {
		c = s.cache
	}

	state := graph.NewState(strings.TrimSpace(req.Target))
	return s.runner.Run(ctx, entry, state, s.deps.WithCache(c), graph.RunOptions{
		RunID:      req.RunID,
		MaxSteps:   maxSteps,
		RunTimeout: timeout,
	})
}

// Describe lists the registered steps with their edges and slots.
func (s *System) Describe() []graph.StepInfo {
	return s.runner.Graph().Describe()
}

// Cache returns the system result cache, which may be nil.
func (s *System) Cache() *cache.Cache {
	return s.cache
}

// Config returns a copy of the pipeline configuration.
func (s *System) Config() Config {
	return s.cfg
}
