package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
)

// VideoStep returns the step that transcribes video content. Videos
// without a usable transcript fall back to the generic step.
func VideoStep() graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepVideo,
		[]string{StepFinalize, StepGeneric},
		[]string{SlotTranscript},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			if deps.Transcriber == nil {
				return graph.Goto(StepGeneric), nil
			}

			tr, err := deps.Transcriber.Transcribe(ctx, fetchTarget(sc.State()))
			if err != nil {
				record(sc, err)
				return graph.Goto(StepGeneric), nil
			}

			if err := sc.Put(SlotTranscript, tr); err != nil {
				return graph.Next{}, err
			}

			if strings.TrimSpace(tr.Text) == "" {
				sc.RecordError(string(adapter.ReasonNotFound), fmt.Errorf("%w: %s", ErrNoTranscript, tr.VideoID))
				return graph.Goto(StepGeneric), nil
			}
			return graph.Goto(StepFinalize), nil
		},
	)
}

// ArticleStep returns the step that extracts the main text of an article.
// Pages the article extractor cannot read fall back to the generic step.
func ArticleStep() graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepArticle,
		[]string{StepFinalize, StepGeneric},
		[]string{SlotExtraction},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			if deps.Articles == nil {
				return graph.Goto(StepGeneric), nil
			}

			fr, err := fetched(sc.State())
			if err != nil {
				return graph.Next{}, err
			}

			ext, err := deps.Articles.Extract(ctx, document(fr))
			if err != nil {
				record(sc, err)
				return graph.Goto(StepGeneric), nil
			}

			if err := sc.Put(SlotExtraction, ext); err != nil {
				return graph.Next{}, err
			}
			return graph.Goto(StepFinalize), nil
		},
	)
}

// GenericStep returns the fallback step that extracts whatever text the
// fetched document holds. It fails the run only when nothing at all was
// gathered.
func GenericStep() graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepGeneric,
		[]string{StepFinalize, graph.EdgeFailure},
		[]string{SlotExtraction},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			st := sc.State()
			fr, err := fetched(st)
			if err != nil {
				return graph.Next{}, err
			}

			if deps.Documents != nil {
				ext, err := deps.Documents.Extract(ctx, document(fr))
				if err == nil {
					if err := sc.Put(SlotExtraction, ext); err != nil {
						return graph.Next{}, err
					}
					return graph.Goto(StepFinalize), nil
				}
				record(sc, err)
			}

			if st.Has(SlotTranscript) || st.Has(SlotMetadata) {
				return graph.Goto(StepFinalize), nil
			}
			return graph.Fail(ReasonUnsupportedContent, fmt.Errorf("%w: %s (%s)", ErrNoText, pageURL(fr), fr.ContentType)), nil
		},
	)
}

// DiscoverStep returns the step that searches a landing page for full-text
// links. Found PDF links send the run back to the science step.
func DiscoverStep() graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepDiscover,
		[]string{StepScience, StepGeneric},
		[]string{SlotLinks},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			if deps.Links == nil {
				return graph.Goto(StepGeneric), nil
			}

			fr, err := fetched(sc.State())
			if err != nil {
				return graph.Next{}, err
			}

			set, err := deps.Links.FindLinks(ctx, adapter.LinkQuery{
				Target:      pageURL(fr),
				ContentType: fr.ContentType,
				Content:     fr.Content,
			})
			if err != nil {
				record(sc, err)
				return graph.Goto(StepGeneric), nil
			}

			if err := sc.Put(SlotLinks, set); err != nil {
				return graph.Next{}, err
			}

			deps.logger().InfoContext(ctx, "links discovered",
				"run_id", sc.RunID(),
				"pdfs", len(set.PDFs),
				"pages", len(set.Pages),
			)

			if len(set.PDFs) > 0 {
				return graph.Goto(StepScience), nil
			}
			return graph.Goto(StepGeneric), nil
		},
	)
}
