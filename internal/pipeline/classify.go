package pipeline

import (
	"context"
	"mime"
	"strings"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/services/markup"
)

var labelSteps = map[adapter.Label]string{
	adapter.LabelScience: StepScience,
	adapter.LabelVideo:   StepVideo,
	adapter.LabelArticle: StepArticle,
	adapter.LabelGeneric: StepGeneric,
}

// ClassifyStep returns the step that labels fetched content and routes to
// the matching content step. A classifier failure is recorded and routes
// to the generic step.
func ClassifyStep(cfg *Config) graph.Step[Deps] {
	return graph.NewStep[Deps](
		StepClassify,
		[]string{StepScience, StepVideo, StepArticle, StepGeneric},
		[]string{SlotClassify},
		func(ctx context.Context, sc *graph.Scope, deps Deps) (graph.Next, error) {
			if deps.Classifier == nil {
				return graph.Next{}, ErrNoClassifier
			}

			fr, err := fetched(sc.State())
			if err != nil {
				return graph.Next{}, err
			}

			c, err := deps.Classifier.Classify(ctx, ClassifyInput(fr, cfg.ClassifyBytes))
			if err != nil {
				record(sc, err)
				return graph.Goto(StepGeneric), nil
			}

			if err := sc.Put(SlotClassify, c); err != nil {
				return graph.Next{}, err
			}

			label := Route(c, cfg.ClassifyThreshold)
			deps.logger().InfoContext(ctx, "content classified",
				"run_id", sc.RunID(),
				"label", c.Label,
				"confidence", c.Confidence,
				"route", label,
			)
			return graph.Goto(labelSteps[label]), nil
		},
	)
}

// Route returns the label a classification routes to: the highest scoring
// label, ties resolved science, video, article, generic. A top score below
// threshold routes to generic.
func Route(c *adapter.Classification, threshold float64) adapter.Label {
	if c == nil {
		return adapter.LabelGeneric
	}
	scores := c.Scores
	if len(scores) == 0 {
		scores = map[adapter.Label]float64{c.Label: c.Confidence}
	}
	label, conf := adapter.Top(scores)
	if conf < threshold {
		return adapter.LabelGeneric
	}
	return label
}

// ClassifyInput builds the classifier input for fetched content. Only
// textual content is passed as text, truncated to limit bytes.
func ClassifyInput(fr *adapter.FetchResult, limit int) adapter.ClassifyInput {
	in := adapter.ClassifyInput{
		Target:      fr.Target,
		ContentType: fr.ContentType,
	}
	if textual(fr.ContentType, fr.Content) {
		data := fr.Content
		if limit > 0 && len(data) > limit {
			data = data[:limit]
		}
		in.Text = strings.ToValidUTF8(string(data), "")
	}
	return in
}

func textual(contentType string, data []byte) bool {
	if markup.IsHTML(contentType, data) {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "text/") || strings.HasSuffix(mt, "json") || strings.HasSuffix(mt, "xml")
}
