package classify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/services/classify"
	"github.com/JaimeStill/gather/internal/services/llm"
)

func TestDetectIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		target string
		text   string
		want   adapter.Identifiers
	}{
		{"doi url", "https://doi.org/10.1038/NATURE12373", "", adapter.Identifiers{DOI: "10.1038/nature12373"}},
		{"doi in text", "https://example.org", "See doi:10.1000/xyz123.", adapter.Identifiers{DOI: "10.1000/xyz123"}},
		{"arxiv url", "https://arxiv.org/abs/2101.00001v2", "", adapter.Identifiers{ArXiv: "2101.00001"}},
		{"arxiv label", "", "Preprint arXiv:1706.03762", adapter.Identifiers{ArXiv: "1706.03762"}},
		{"pubmed url", "https://pubmed.ncbi.nlm.nih.gov/31452104/", "", adapter.Identifiers{PubMed: "31452104"}},
		{"pmid", "", "PMID: 12345678", adapter.Identifiers{PubMed: "12345678"}},
		{"target wins", "https://doi.org/10.1234/aaa", "10.5678/bbb", adapter.Identifiers{DOI: "10.1234/aaa"}},
		{"none", "https://example.org/blog", "plain words", adapter.Identifiers{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify.DetectIdentifiers(tt.target, tt.text); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func articleHTML() string {
	var sb strings.Builder
	sb.WriteString(`<html><head><title>Long Read</title><meta property="og:type" content="article"><meta name="author" content="A. Writer"></head><body><article>`)
	for range 6 {
		sb.WriteString("<p>" + strings.Repeat("word ", 60) + "</p>")
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		in    adapter.ClassifyInput
		label adapter.Label
		title string
	}{
		{
			name:  "youtube watch page",
			in:    adapter.ClassifyInput{Target: "https://www.youtube.com/watch?v=abc", ContentType: "text/html", Text: "<html><head><title>Clip</title></head></html>"},
			label: adapter.LabelVideo,
			title: "Clip",
		},
		{
			name:  "pdf",
			in:    adapter.ClassifyInput{Target: "https://example.org/paper.pdf", ContentType: "application/pdf"},
			label: adapter.LabelScience,
		},
		{
			name: "arxiv landing page",
			in: adapter.ClassifyInput{
				Target:      "https://arxiv.org/abs/1706.03762",
				ContentType: "text/html",
				Text:        `<html><head><meta name="citation_title" content="Attention"></head><body><blockquote>Abstract: ...</blockquote></body></html>`,
			},
			label: adapter.LabelScience,
		},
		{
			name:  "article",
			in:    adapter.ClassifyInput{Target: "https://news.example.org/story", ContentType: "text/html", Text: articleHTML()},
			label: adapter.LabelArticle,
			title: "Long Read",
		},
		{
			name:  "bare page",
			in:    adapter.ClassifyInput{Target: "https://shop.example.org", ContentType: "text/html", Text: "<html><body><ul><li>item</li></ul></body></html>"},
			label: adapter.LabelGeneric,
		},
	}

	h := classify.NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := h.Classify(context.Background(), tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if c.Label != tt.label {
				t.Errorf("label: got %s, want %s (scores %v)", c.Label, tt.label, c.Scores)
			}
			if tt.title != "" && c.Title != tt.title {
				t.Errorf("title: got %q", c.Title)
			}
			if c.Confidence < 0 || c.Confidence > 1 {
				t.Errorf("confidence out of range: %v", c.Confidence)
			}
			if len(c.Scores) != len(adapter.Priority) {
				t.Errorf("scores: got %v", c.Scores)
			}
		})
	}
}

func TestHeuristicCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := classify.NewHeuristic().Classify(ctx, adapter.ClassifyInput{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func newOpenAI(t *testing.T, status int, body string) *classify.OpenAI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		req, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(req), `"json_object"`) {
			t.Errorf("request missing json response format: %s", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	cfg := &llm.Config{BaseURL: srv.URL + "/v1", APIKey: "test"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	return classify.NewOpenAI(llm.NewClient(cfg), cfg, nil, slog.New(slog.DiscardHandler))
}

func TestOpenAI(t *testing.T) {
	in := adapter.ClassifyInput{
		Target:      "https://arxiv.org/abs/1706.03762",
		ContentType: "text/html",
		Text:        "<html><head><title>Attention Is All You Need</title></head><body><p>Abstract</p></body></html>",
	}

	t.Run("scores", func(t *testing.T) {
		content := "```json\n" + `{"scores":{"science":0.9,"Video":0.1,"article":0.9,"bogus":1},"title":"","rationale":"arXiv abstract"}` + "\n```"
		c, err := newOpenAI(t, http.StatusOK, completion(content)).Classify(context.Background(), in)
		if err != nil {
			t.Fatal(err)
		}
		if c.Label != adapter.LabelScience || c.Confidence != 0.9 {
			t.Errorf("tie should resolve to science: got %s %v", c.Label, c.Confidence)
		}
		if _, ok := c.Scores["bogus"]; ok {
			t.Error("unknown label kept")
		}
		if c.Scores[adapter.LabelVideo] != 0.1 {
			t.Errorf("label names not normalized: %v", c.Scores)
		}
		if c.Title != "Attention Is All You Need" {
			t.Errorf("title: got %q", c.Title)
		}
		if c.Identifiers.ArXiv != "1706.03762" {
			t.Errorf("identifiers: got %+v", c.Identifiers)
		}
	})

	failures := []struct {
		name   string
		status int
		body   string
		reason adapter.Reason
	}{
		{"unparseable", http.StatusOK, completion("I think it is science"), adapter.ReasonCorrupt},
		{"no scores", http.StatusOK, completion(`{"scores":{"other":1}}`), adapter.ReasonCorrupt},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, adapter.ReasonUpstream},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, adapter.ReasonUpstream},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newOpenAI(t, tt.status, tt.body).Classify(context.Background(), in)
			if got := adapter.ReasonOf(err); got != tt.reason {
				t.Errorf("reason: got %q, want %q (%v)", got, tt.reason, err)
			}
		})
	}
}
