package links

import (
	"context"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/prompts"
	"github.com/JaimeStill/gather/internal/services/llm"
	"github.com/JaimeStill/gather/pkg/formatting"
)

// MaxCandidates bounds the anchors offered to the model.
const MaxCandidates = 150

type candidate struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

type linksContext struct {
	Target     string      `json:"target"`
	Title      string      `json:"title,omitempty"`
	Candidates []candidate `json:"candidates"`
}

type modelResponse struct {
	PDFs      []string `json:"pdfs"`
	Rationale string   `json:"rationale"`
}

// OpenAI asks a chat completion model which anchors on a page download
// the full text. Answers are restricted to URLs present on the page.
// Links found by the anchor scan are returned first.
type OpenAI struct {
	client  *openai.Client
	model   string
	prompts *prompts.Set
	scan    *Scan
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI creates a model-backed link finder from a finalized cfg.
func NewOpenAI(client *openai.Client, cfg *llm.Config, ps *prompts.Set, limit int, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:  client,
		model:   cfg.Model,
		prompts: ps,
		scan:    NewScan(limit),
		timeout: cfg.TimeoutDuration(),
		logger:  logger.With("system", "links.openai", "model", cfg.Model),
	}
}

func (o *OpenAI) FindLinks(ctx context.Context, q adapter.LinkQuery) (*adapter.LinkSet, error) {
	ctx, cancel := adapter.Bound(ctx, o.timeout)
	defer cancel()

	base, err := o.scan.FindLinks(ctx, q)
	if err != nil {
		return nil, err
	}

	page, err := parse(q)
	if err != nil {
		return nil, err
	}

	lc := linksContext{Target: q.Target, Title: page.Title()}
	allowed := make(map[string]bool)
	for _, l := range page.Links(q.Target) {
		if len(lc.Candidates) == MaxCandidates {
			break
		}
		lc.Candidates = append(lc.Candidates, candidate{URL: l.URL, Text: l.Text})
		allowed[l.URL] = true
	}
	if len(lc.Candidates) == 0 {
		return base, nil
	}

	system, err := o.prompts.Compose(prompts.StageLinks, lc)
	if err != nil {
		return nil, adapter.Fail(adapter.OpLinks, adapter.ReasonUpstream, err)
	}

	content, err := llm.JSON(ctx, o.client, adapter.OpLinks, o.model, system, "Select the full-text PDF links for "+q.Target)
	if err != nil {
		return nil, err
	}

	parsed, err := formatting.Parse[modelResponse](content)
	if err != nil {
		return nil, adapter.Fail(adapter.OpLinks, adapter.ReasonCorrupt, err)
	}

	seen := make(map[string]bool, len(base.PDFs))
	for _, u := range base.PDFs {
		seen[u] = true
	}
	for _, u := range parsed.PDFs {
		if allowed[u] && !seen[u] && (o.scan.limit <= 0 || len(base.PDFs) < o.scan.limit) {
			seen[u] = true
			base.PDFs = append(base.PDFs, u)
		}
	}

	o.logger.InfoContext(ctx, "links selected", "target", q.Target, "pdfs", len(base.PDFs), "candidates", len(lc.Candidates))
	return base, nil
}
