// Package runs exposes the content pipeline over HTTP: starting runs,
// describing the graph, and reporting cache statistics.
package runs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/pkg/cache"
)

// Runner is the pipeline surface the handler drives. *pipeline.System
// satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) *graph.Outcome
	Describe() []graph.StepInfo
	Cache() *cache.Cache
	Config() pipeline.Config
}

// Request is the body of POST /runs. The run timeout is given either in
// milliseconds or as a duration string, not both.
type Request struct {
	Target       string `json:"target"`
	Entry        string `json:"entry,omitempty"`
	MaxSteps     int    `json:"max_steps,omitempty"`
	RunTimeoutMS int    `json:"run_timeout_ms,omitempty"`
	RunTimeout   string `json:"run_timeout,omitempty"`
}

// GraphInfo describes the registered pipeline graph.
type GraphInfo struct {
	Name     string           `json:"name"`
	Entry    string           `json:"entry"`
	MaxSteps int              `json:"max_steps"`
	Steps    []graph.StepInfo `json:"steps"`
}

// RunRequest validates r and converts it into a pipeline request.
func (r Request) RunRequest() (pipeline.RunRequest, error) {
	target := strings.TrimSpace(r.Target)
	if target == "" {
		return pipeline.RunRequest{}, ErrEmptyTarget
	}
	if r.MaxSteps < 0 {
		return pipeline.RunRequest{}, fmt.Errorf("%w: max_steps must not be negative", pipeline.ErrInvalidRequest)
	}

	var timeout time.Duration
	switch {
	case r.RunTimeoutMS < 0:
		return pipeline.RunRequest{}, fmt.Errorf("%w: run_timeout_ms must not be negative", ErrInvalidTimeout)
	case r.RunTimeoutMS > 0 && r.RunTimeout != "":
		return pipeline.RunRequest{}, fmt.Errorf("%w: set run_timeout_ms or run_timeout, not both", ErrInvalidTimeout)
	case r.RunTimeoutMS > 0:
		timeout = time.Duration(r.RunTimeoutMS) * time.Millisecond
	case r.RunTimeout != "":
		d, err := time.ParseDuration(r.RunTimeout)
		if err != nil || d <= 0 {
			return pipeline.RunRequest{}, fmt.Errorf("%w: %q", ErrInvalidTimeout, r.RunTimeout)
		}
		timeout = d
	}

	return pipeline.RunRequest{
		Target:     target,
		Entry:      strings.TrimSpace(r.Entry),
		MaxSteps:   r.MaxSteps,
		RunTimeout: timeout,
	}, nil
}
