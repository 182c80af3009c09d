package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/prompts"
	"github.com/JaimeStill/gather/internal/services/llm"
	"github.com/JaimeStill/gather/internal/services/markup"
	"github.com/JaimeStill/gather/pkg/formatting"
)

type modelResponse struct {
	Scores    map[string]float64 `json:"scores"`
	Title     string             `json:"title"`
	Rationale string             `json:"rationale"`
}

type classifyContext struct {
	Target      string `json:"target"`
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
}

// OpenAI classifies content with a chat completion model that scores
// every label.
type OpenAI struct {
	client  *openai.Client
	model   string
	prompts *prompts.Set
	excerpt int
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI creates a model-backed classifier from a finalized cfg.
func NewOpenAI(client *openai.Client, cfg *llm.Config, ps *prompts.Set, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:  client,
		model:   cfg.Model,
		prompts: ps,
		excerpt: cfg.Excerpt,
		timeout: cfg.TimeoutDuration(),
		logger:  logger.With("system", "classify.openai", "model", cfg.Model),
	}
}

func (o *OpenAI) Classify(ctx context.Context, in adapter.ClassifyInput) (*adapter.Classification, error) {
	ctx, cancel := adapter.Bound(ctx, o.timeout)
	defer cancel()

	title, text := in.Title, in.Text
	if markup.IsHTML(in.ContentType, []byte(text)) {
		if p, err := markup.Parse([]byte(text)); err == nil {
			if title == "" {
				title = p.Title()
			}
			text = p.MainText()
		}
	}

	system, err := o.prompts.Compose(prompts.StageClassify, classifyContext{
		Target:      in.Target,
		ContentType: in.ContentType,
		Title:       title,
	})
	if err != nil {
		return nil, adapter.Fail(adapter.OpClassify, adapter.ReasonUpstream, err)
	}

	content, err := llm.JSON(ctx, o.client, adapter.OpClassify, o.model, system, llm.Excerpt(text, o.excerpt))
	if err != nil {
		return nil, err
	}

	parsed, err := formatting.Parse[modelResponse](content)
	if err != nil {
		return nil, adapter.Fail(adapter.OpClassify, adapter.ReasonCorrupt, err)
	}

	scores := make(map[adapter.Label]float64, len(adapter.Priority))
	for name, s := range parsed.Scores {
		l := adapter.Label(strings.ToLower(strings.TrimSpace(name)))
		if l.Valid() {
			scores[l] = clamp(s)
		}
	}
	if len(scores) == 0 {
		return nil, adapter.Fail(adapter.OpClassify, adapter.ReasonCorrupt,
			fmt.Errorf("%w: no label scores", formatting.ErrParseFailed))
	}

	if parsed.Title != "" {
		title = parsed.Title
	}

	label, conf := adapter.Top(scores)
	o.logger.InfoContext(ctx, "classified", "target", in.Target, "label", label, "confidence", conf)

	return &adapter.Classification{
		Label:       label,
		Confidence:  conf,
		Scores:      scores,
		Identifiers: DetectIdentifiers(in.Target, in.Text),
		Title:       title,
		Rationale:   parsed.Rationale,
	}, nil
}
