package pipeline

import (
	"context"
	"fmt"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
)

// ResolveStep returns the entry step. URL targets pass straight to fetch;
// any other target is a search query looked up in the resolver registry and
// replaced by the best URL of the matching work.
func ResolveStep() graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepResolve,
		[]string{StepFetch, graph.EdgeFailure},
		[]string{SlotResolve},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			query := fetchTarget(sc.State())
			if IsURL(query) {
				return graph.Goto(StepFetch), nil
			}

			if deps.Resolver == nil {
				return graph.Fail(ReasonUnresolved, fmt.Errorf("%w: %q: no resolver configured", ErrNotResolved, query)), nil
			}

			rec, err := deps.Resolver.Lookup(ctx, adapter.RegistryQuery{Title: query})
			if err != nil {
				record(sc, err)
				return graph.Fail(ReasonUnresolved, fmt.Errorf("%w: %w", ErrNotResolved, err)), nil
			}

			target := resolvedURL(rec)
			if target == "" {
				return graph.Fail(ReasonUnresolved, fmt.Errorf("%w: %q", ErrNotResolved, query)), nil
			}

			if err := sc.Put(SlotResolve, &Resolution{Query: query, URL: target, Record: rec}); err != nil {
				return graph.Next{}, err
			}

			deps.logger().InfoContext(ctx, "query resolved",
				"run_id", sc.RunID(),
				"query", query,
				"url", target,
				"registry", deps.Resolver.Name(),
			)
			return graph.Goto(StepFetch), nil
		},
	)
}

// resolvedURL prefers a full-text PDF over the landing page.
func resolvedURL(rec *adapter.Record) string {
	if rec == nil {
		return ""
	}
	for _, u := range rec.PDFURLs {
		if IsURL(u) {
			return u
		}
	}
	if IsURL(rec.URL) {
		return rec.URL
	}
	return ""
}
