package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/services/extract"
	"github.com/JaimeStill/gather/internal/services/markup"
)

// ScienceStep returns the step for scholarly content. On its first visit
// it looks the work up in every registry concurrently. It then extracts
// the full text: the fetched document itself when it is a PDF, otherwise
// up to cfg.PDFLinkLimit PDF links from registry records and discovered
// links. A landing page without full text is sent once to discover.
func ScienceStep(cfg *Config) graph.Step[Deps] {
	opts := cfg.FetchOptions()

	return graph.NewStep[Deps](
		StepScience,
		[]string{StepDiscover, StepGeneric, StepFinalize},
		[]string{SlotMetadata, SlotPDFLinks, SlotExtraction},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			st := sc.State()
			fr, err := fetched(st)
			if err != nil {
				return graph.Next{}, err
			}

			records, ok := graph.Get[[]adapter.Record](st, SlotMetadata)
			if !ok && sc.Visit() == 1 {
				records = lookup(ctx, sc, deps, RegistryQuery(classification(st), st))
				if len(records) > 0 {
					if err := sc.Put(SlotMetadata, records); err != nil {
						return graph.Next{}, err
					}
				}
			}

			if deps.Documents != nil && isPDF(fr) {
				ext, err := deps.Documents.Extract(ctx, document(fr))
				if err == nil {
					if err := sc.Put(SlotExtraction, ext); err != nil {
						return graph.Next{}, err
					}
					return graph.Goto(StepFinalize), nil
				}
				record(sc, err)
			}

			candidates := pdfCandidates(fr, records, st, cfg.PDFLinkLimit)
			if len(candidates) > 0 {
				if err := sc.Put(SlotPDFLinks, candidates); err != nil {
					return graph.Next{}, err
				}
				if ext := fetchFullText(ctx, sc, deps, candidates, opts); ext != nil {
					if err := sc.Put(SlotExtraction, ext); err != nil {
						return graph.Next{}, err
					}
					return graph.Goto(StepFinalize), nil
				}
			}

			if !markup.IsHTML(fr.ContentType, fr.Content) {
				return graph.Goto(StepFinalize), nil
			}
			if sc.Visit() == 1 && deps.Links != nil {
				return graph.Goto(StepDiscover), nil
			}
			return graph.Goto(StepGeneric), nil
		},
	)
}

// RegistryQuery derives a registry query from a classification, falling
// back to a resolved record for the title. arXiv identifiers map to their
// DataCite DOI.
func RegistryQuery(c *adapter.Classification, st *graph.State) adapter.RegistryQuery {
	var q adapter.RegistryQuery
	if c != nil {
		q.DOI = c.Identifiers.DOI
		if q.DOI == "" && c.Identifiers.ArXiv != "" {
			q.DOI = "10.48550/arxiv." + strings.ToLower(c.Identifiers.ArXiv)
		}
		q.Title = c.Title
	}
	if r, ok := graph.Get[*Resolution](st, SlotResolve); ok && r != nil && r.Record != nil {
		if q.DOI == "" {
			q.DOI = r.Record.DOI
		}
		if q.Title == "" {
			q.Title = r.Record.Title
		}
	}
	return q
}

// lookup queries every registry concurrently. Failures are recorded and do
// not stop the other lookups; not-found results are dropped.
func lookup(ctx context.Context, sc *graph.Scope, deps Deps, q adapter.RegistryQuery) []adapter.Record {
	if q.DOI == "" && q.Title == "" {
		return nil
	}

	found := make([]*adapter.Record, len(deps.Registries))
	errs := make([]error, len(deps.Registries))

	var g errgroup.Group
	for i, r := range deps.Registries {
		g.Go(func() error {
			found[i], errs[i] = r.Lookup(ctx, q)
			return nil
		})
	}
	g.Wait()

	var records []adapter.Record
	for i, r := range deps.Registries {
		if errs[i] != nil {
			record(sc, fmt.Errorf("%s: %w", r.Name(), errs[i]))
			continue
		}
		if found[i] != nil {
			records = append(records, *found[i])
		}
	}
	return records
}

func pdfCandidates(fr *adapter.FetchResult, records []adapter.Record, st *graph.State, limit int) []string {
	seen := map[string]bool{fr.Target: true, pageURL(fr): true}
	var out []string
	add := func(u string) {
		if len(out) < limit && IsURL(u) && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	for _, r := range records {
		for _, u := range r.PDFURLs {
			add(u)
		}
	}
	if set, ok := graph.Get[*adapter.LinkSet](st, SlotLinks); ok && set != nil {
		for _, u := range set.PDFs {
			add(u)
		}
	}
	return out
}

// fetchFullText returns the first candidate that fetches and extracts.
func fetchFullText(ctx context.Context, sc *graph.Scope, deps Deps, candidates []string, opts adapter.FetchOptions) *adapter.Extraction {
	if deps.Fetcher == nil || deps.Documents == nil {
		return nil
	}
	for _, u := range candidates {
		res, err := deps.Fetcher.Fetch(ctx, u, opts)
		if err != nil {
			record(sc, err)
			continue
		}
		ext, err := deps.Documents.Extract(ctx, document(res))
		if err != nil {
			record(sc, err)
			continue
		}
		return ext
	}
	return nil
}

func isPDF(fr *adapter.FetchResult) bool {
	kind, ok := extract.KindOf(fr.ContentType, fr.Content)
	return ok && kind == extract.KindPDF
}
