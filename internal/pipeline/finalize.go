package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/pkg/cache"
)

// FinalizeStep returns the step that composes the Result. Runs with an
// exporter continue to the export step.
func FinalizeStep(cfg *Config) graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepFinalize,
		[]string{StepExport, graph.EdgeSuccess},
		nil,
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			if deps.Exporter != nil {
				return graph.Goto(StepExport), nil
			}
			result := BuildResult(sc.State(), cfg.ClassifyThreshold)
			deps.logger().InfoContext(ctx, "run finalized",
				"run_id", sc.RunID(),
				"content_type", result.ContentType,
				"metadata_complete", result.MetadataComplete,
				"full_text_extracted", result.FullTextExtracted,
			)
			return graph.Succeed(result), nil
		},
	)
}

// ExportStep returns the step that stores the Result through the exporter.
// An export failure is recorded; the run still succeeds.
func ExportStep(cfg *Config) graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepExport,
		[]string{graph.EdgeSuccess},
		[]string{SlotExport},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			st := sc.State()
			result := BuildResult(st, cfg.ClassifyThreshold)

			data, err := json.Marshal(result)
			if err != nil {
				return graph.Next{}, fmt.Errorf("encode result: %w", err)
			}

			key := ExportKey(st.Target())
			loc, err := deps.Exporter.Export(ctx, key, data)
			if err != nil {
				record(sc, err)
				result.Errors = processingErrors(st.Errors())
				return graph.Succeed(result), nil
			}

			if err := sc.Put(SlotExport, &Export{Key: key, Location: loc}); err != nil {
				return graph.Next{}, err
			}
			result.Location = loc
			return graph.Succeed(result), nil
		},
	)
}

// ExportKey is the storage key for the result of target. Equivalent
// targets share a key.
func ExportKey(target string) string {
	return strings.ReplaceAll(cache.MustFingerprint("result", strings.TrimSpace(target)), ":", "/") + ".json"
}

// BuildResult composes the Result from the collected slots of st.
func BuildResult(st *graph.State, threshold float64) *Result {
	r := &Result{
		Target:      st.Target(),
		URL:         fetchTarget(st),
		ContentType: adapter.LabelGeneric,
		Attempts:    st.Attempts(),
		Errors:      processingErrors(st.Errors()),
	}

	if fr, ok := graph.Get[*adapter.FetchResult](st, SlotFetch); ok && fr != nil {
		r.URL = pageURL(fr)
	}

	if c := classification(st); c != nil {
		r.ContentType = Route(c, threshold)
		_, r.Confidence = adapter.Top(c.Scores)
		if len(c.Scores) == 0 {
			r.Confidence = c.Confidence
		}
		r.Title = c.Title
		r.Identifiers = c.Identifiers
	}

	if records, ok := graph.Get[[]adapter.Record](st, SlotMetadata); ok && len(records) > 0 {
		r.Records = records
		r.MetadataComplete = true
		if r.Title == "" {
			r.Title = records[0].Title
		}
		if r.Identifiers.DOI == "" {
			r.Identifiers.DOI = records[0].DOI
		}
	}

	if links, ok := graph.Get[[]string](st, SlotPDFLinks); ok {
		r.PDFLinks = links
	} else if set, ok := graph.Get[*adapter.LinkSet](st, SlotLinks); ok && set != nil {
		r.PDFLinks = set.PDFs
	}

	if ext, ok := graph.Get[*adapter.Extraction](st, SlotExtraction); ok && ext != nil {
		r.Extraction = ext
		r.FullTextExtracted = strings.TrimSpace(ext.Text) != ""
		if r.Title == "" {
			r.Title = ext.Title
		}
	}

	if tr, ok := graph.Get[*adapter.Transcript](st, SlotTranscript); ok && tr != nil {
		r.Transcript = tr
		r.FullTextExtracted = r.FullTextExtracted || strings.TrimSpace(tr.Text) != ""
		if r.Title == "" {
			r.Title = tr.Title
		}
	}

	if exp, ok := graph.Get[*Export](st, SlotExport); ok && exp != nil {
		r.Location = exp.Location
	}

	return r
}
