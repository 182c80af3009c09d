package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSteps bounds a run when RunOptions.MaxSteps is not set.
const DefaultMaxSteps = 25

// Observer receives step and run events. Implementations must be safe for
// concurrent use.
type Observer interface {
	StepCompleted(graph, step, edge string, d time.Duration)
	RunCompleted(graph string, o *Outcome)
}

// RunOptions bound a single run.
type RunOptions struct {
	RunID      string
	MaxSteps   int
	RunTimeout time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	observer Observer
}

// WithObserver reports step and run events to o.
func WithObserver(o Observer) RunnerOption {
	return func(c *runnerConfig) {
		c.observer = o
	}
}

// Runner drives runs over a validated Graph. It holds no per-run data and is
// safe for concurrent runs.
type Runner[D any] struct {
	graph    *Graph[D]
	logger   *slog.Logger
	observer Observer
}

// NewRunner creates a Runner for g.
func NewRunner[D any](g *Graph[D], logger *slog.Logger, opts ...RunnerOption) *Runner[D] {
	cfg := runnerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner[D]{
		graph:    g,
		logger:   logger.With("system", "graph", "graph", g.Name()),
		observer: cfg.observer,
	}
}

// Graph returns the graph the Runner executes.
func (r *Runner[D]) Graph() *Graph[D] {
	return r.graph
}

type stepResult struct {
	next Next
	err  error
}

// Run executes the graph from entry until a step returns a terminal value,
// the step budget is spent, the run timeout expires or ctx is cancelled.
// It always returns an Outcome carrying state.
func (r *Runner[D]) Run(ctx context.Context, entry string, state *State, deps D, opts RunOptions) *Outcome {
	start := time.Now()

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if state == nil {
		state = NewState("")
	}

	if opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.RunTimeout)
		defer cancel()
	}

	logger := r.logger.With("run_id", opts.RunID)

	run := &Outcome{
		RunID: opts.RunID,
		Graph: r.graph.Name(),
		State: state,
	}

	finish := func(status Status, payload any, reason Reason, err error, final ...ErrorEntry) *Outcome {
		state.seal(final...)
		run.Status = status
		run.Payload = payload
		run.Reason = reason
		run.Err = err
		run.Duration = time.Since(start)

		if status == StatusSuccess {
			logger.InfoContext(ctx, "run complete", "steps", run.Steps, "duration", run.Duration)
		} else {
			logger.WarnContext(ctx, "run failed",
				"reason", reason,
				"error", err,
				"steps", run.Steps,
				"duration", run.Duration,
			)
		}

		if r.observer != nil {
			r.observer.RunCompleted(r.graph.Name(), run)
		}
		return run
	}

	fault := func(step string, reason Reason, err error) *Outcome {
		entry := ErrorEntry{
			Step:    step,
			Attempt: state.Attempts(),
			Reason:  string(reason),
			Message: err.Error(),
			At:      time.Now().UTC(),
		}
		return finish(StatusFailure, nil, reason, err, entry)
	}

	current, ok := r.graph.Step(entry)
	if !ok {
		return fault(entry, ReasonUnknownStep, fmt.Errorf("%w: %s", ErrUnknownStep, entry))
	}

	visits := make(map[string]int)

	for {
		if err := ctx.Err(); err != nil {
			reason, cause := interruption(ctx)
			return fault(current.Name(), reason, cause)
		}

		name := current.Name()
		visits[name]++
		scope := newScope(state, name, current.Slots(), opts.RunID, visits[name])

		stepStart := time.Now()
		res, interrupted := r.invoke(ctx, current, scope, deps)
		elapsed := time.Since(stepStart)

		run.Steps++
		run.Path = append(run.Path, name)

		if interrupted || ctx.Err() != nil {
			reason, cause := interruption(ctx)
			return fault(name, reason, cause)
		}

		if res.err != nil {
			return fault(name, ReasonStepFault, &StepError{Step: name, Err: res.err})
		}

		next := res.next
		edge := next.Edge()

		if edge == "" {
			return fault(name, ReasonStepFault, &StepError{Step: name, Err: ErrEmptyNext})
		}
		if !r.graph.Allows(name, edge) {
			return fault(name, ReasonStepFault, &StepError{
				Step: name,
				Err:  fmt.Errorf("%w: %s", ErrIllegalEdge, edge),
			})
		}

		logger.InfoContext(ctx, "step complete",
			"step", name,
			"visit", scope.Visit(),
			"next", next.String(),
			"duration", elapsed,
		)
		if r.observer != nil {
			r.observer.StepCompleted(r.graph.Name(), name, edge, elapsed)
		}

		switch next.kind {
		case kindSuccess:
			return finish(StatusSuccess, next.payload, "", nil)
		case kindFailure:
			err := next.err
			if err == nil {
				err = errors.New(string(next.reason))
			}
			return finish(StatusFailure, nil, next.reason, err)
		}

		if run.Steps >= opts.MaxSteps {
			return fault(name, ReasonStepBudgetExceeded,
				fmt.Errorf("%w: %d steps", ErrBudgetExceeded, opts.MaxSteps))
		}

		current, _ = r.graph.Step(edge)
	}
}

// invoke runs one step on its own goroutine so the run can stop waiting when
// ctx ends. An abandoned step keeps running; its writes are rejected once the
// State is sealed and its result is dropped.
func (r *Runner[D]) invoke(ctx context.Context, step Step[D], scope *Scope, deps D) (stepResult, bool) {
	done := make(chan stepResult, 1)

	go func() {
		done <- safeRun(ctx, step, scope, deps)
	}()

	select {
	case res := <-done:
		return res, false
	case <-ctx.Done():
		return stepResult{}, true
	}
}

func safeRun[D any](ctx context.Context, step Step[D], scope *Scope, deps D) (res stepResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = stepResult{err: fmt.Errorf("%w: %v\n%s", ErrStepPanic, rec, debug.Stack())}
		}
	}()

	next, err := step.Run(ctx, scope, deps)
	return stepResult{next: next, err: err}
}

func interruption(ctx context.Context) (Reason, error) {
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return ReasonTimeout, ErrRunTimeout
	}
	return ReasonCancelled, ErrRunCancelled
}
