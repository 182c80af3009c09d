package pipeline

import (
	"context"
	"fmt"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/pkg/cache"
)

// FetchStep returns the fetch step. Transport, upstream and timeout
// failures count as attempts; the step loops to itself after a backoff
// delay until cfg.RetryLimit attempts have failed.
func FetchStep(cfg *Config) graph.Step[Deps] {
	opts := cfg.FetchOptions()

	return graph.NewStep[Deps](
		StepFetch,
		[]string{StepFetch, StepClassify, graph.EdgeFailure},
		[]string{SlotFetch},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			if deps.Fetcher == nil {
				return graph.Next{}, ErrNoFetcher
			}

			st := sc.State()
			target := fetchTarget(st)

			fctx := ctx
			if st.Attempts() > 0 {
				fctx = cache.WithRetry(ctx)
			}

			res, err := deps.Fetcher.Fetch(fctx, target, opts)
			if err == nil {
				if err := sc.Put(SlotFetch, res); err != nil {
					return graph.Next{}, err
				}
				return graph.Goto(StepClassify), nil
			}

			reason := adapter.ReasonOf(err)
			if !reason.Retryable() {
				record(sc, err)
				return graph.Fail(ReasonFetchFailed, err), nil
			}

			n := sc.IncrementAttempts()
			record(sc, err)

			if n >= cfg.RetryLimit {
				return graph.Fail(ReasonFetchExhausted, fmt.Errorf("fetch %s failed after %d attempts: %w", target, n, err)), nil
			}

			delay := cfg.Delay(n)
			deps.logger().WarnContext(ctx, "fetch retry scheduled",
				"run_id", sc.RunID(),
				"target", target,
				"attempt", n,
				"reason", reason,
				"delay", delay,
			)
			if err := sleep(ctx, delay); err != nil {
				return graph.Next{}, err
			}
			return graph.Goto(StepFetch), nil
		},
	)
}
