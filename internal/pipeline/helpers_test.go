package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/pkg/cache"
)

var logger = slog.New(slog.DiscardHandler)

type fetcherFunc func(ctx context.Context, target string, opts adapter.FetchOptions) (*adapter.FetchResult, error)

func (f fetcherFunc) Fetch(ctx context.Context, target string, opts adapter.FetchOptions) (*adapter.FetchResult, error) {
	return f(ctx, target, opts)
}

type classifierFunc func(ctx context.Context, in adapter.ClassifyInput) (*adapter.Classification, error)

func (f classifierFunc) Classify(ctx context.Context, in adapter.ClassifyInput) (*adapter.Classification, error) {
	return f(ctx, in)
}

type extractorFunc func(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error)

func (f extractorFunc) Extract(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error) {
	return f(ctx, doc)
}

type transcriberFunc func(ctx context.Context, target string) (*adapter.Transcript, error)

func (f transcriberFunc) Transcribe(ctx context.Context, target string) (*adapter.Transcript, error) {
	return f(ctx, target)
}

type linksFunc func(ctx context.Context, q adapter.LinkQuery) (*adapter.LinkSet, error)

func (f linksFunc) FindLinks(ctx context.Context, q adapter.LinkQuery) (*adapter.LinkSet, error) {
	return f(ctx, q)
}

type exporterFunc func(ctx context.Context, key string, data []byte) (string, error)

func (f exporterFunc) Export(ctx context.Context, key string, data []byte) (string, error) {
	return f(ctx, key, data)
}

type registry struct {
	name string
	fn   func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error)
}

func (r *registry) Name() string { return r.name }

func (r *registry) Lookup(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
	return r.fn(ctx, q)
}

// calls counts adapter invocations by name.
type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *calls) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = make(map[string]int)
	}
	c.n[name]++
}

func (c *calls) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

func (c *calls) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.n))
	for k, v := range c.n {
		out[k] = v
	}
	return out
}

const (
	pdfURL     = "https://example.org/papers/graph.pdf"
	landingURL = "https://journal.example.org/article/42"
	fullPDFURL = "https://journal.example.org/article/42/full.pdf"
	videoURL   = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	articleURL = "https://news.example.org/story"
)

var errTransport = errors.New("connection reset by peer")

// site serves fixed pages keyed by URL; unknown URLs are not found.
type site struct {
	calls *calls
	pages map[string]*adapter.FetchResult
	fail  map[string]adapter.Reason
}

func newSite(c *calls) *site {
	return &site{
		calls: c,
		pages: map[string]*adapter.FetchResult{
			pdfURL:     page(pdfURL, "application/pdf", "%PDF-1.7 graph paper body"),
			landingURL: page(landingURL, "text/html", "<html><head><title>Graphs</title></head><body><p>Landing page abstract.</p></body></html>"),
			fullPDFURL: page(fullPDFURL, "application/pdf", "%PDF-1.7 full text"),
			videoURL:   page(videoURL, "text/html", "<html><head><title>Lecture</title></head><body><video></video></body></html>"),
			articleURL: page(articleURL, "text/html", "<html><body><article><p>Story text.</p></article></body></html>"),
		},
		fail: make(map[string]adapter.Reason),
	}
}

func page(u, ct, body string) *adapter.FetchResult {
	return &adapter.FetchResult{Target: u, FinalURL: u, StatusCode: 200, ContentType: ct, Content: []byte(body)}
}

func (s *site) fetcher() adapter.Fetcher {
	return fetcherFunc(func(ctx context.Context, target string, _ adapter.FetchOptions) (*adapter.FetchResult, error) {
		s.calls.inc("fetch")
		if reason, ok := s.fail[target]; ok {
			return nil, adapter.Fail(adapter.OpFetch, reason, errTransport)
		}
		p, ok := s.pages[target]
		if !ok {
			return nil, adapter.Fail(adapter.OpFetch, adapter.ReasonNotFound, errors.New("404"))
		}
		cp := *p
		return &cp, nil
	})
}

func fixedClassifier(c *calls, label adapter.Label, conf float64) adapter.Classifier {
	return classifierFunc(func(ctx context.Context, in adapter.ClassifyInput) (*adapter.Classification, error) {
		c.inc("classify")
		return &adapter.Classification{
			Label:      label,
			Confidence: conf,
			Scores:     map[adapter.Label]float64{label: conf, adapter.LabelGeneric: 0.1},
			Title:      "Graph Methods",
		}, nil
	})
}

// byURL classifies by target so one bundle can drive every branch.
func byURL(c *calls, labels map[string]adapter.Label) adapter.Classifier {
	return classifierFunc(func(ctx context.Context, in adapter.ClassifyInput) (*adapter.Classification, error) {
		c.inc("classify")
		label, ok := labels[in.Target]
		if !ok {
			return nil, adapter.Fail(adapter.OpClassify, adapter.ReasonUpstream, errors.New("model unavailable"))
		}
		return &adapter.Classification{Label: label, Confidence: 0.9, Title: "Graph Methods"}, nil
	})
}

func documents(c *calls) adapter.Extractor {
	return extractorFunc(func(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error) {
		c.inc("extract")
		if len(doc.Data) == 0 {
			return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat, errors.New("empty"))
		}
		return &adapter.Extraction{Source: doc.Source, Format: doc.ContentType, Text: string(doc.Data), Words: 3}, nil
	})
}

func nullRegistry(c *calls, name string) adapter.Registry {
	return &registry{name: name, fn: func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
		c.inc(name)
		return nil, nil
	}}
}

func testConfig(t *testing.T) *pipeline.Config {
	t.Helper()
	cfg := &pipeline.Config{BackoffInitial: "1ms", BackoffMax: "2ms", RunTimeout: "5s"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newSystem(t *testing.T, cfg *pipeline.Config, deps pipeline.Deps, c *cache.Cache, opts ...graph.RunnerOption) *pipeline.System {
	t.Helper()
	sys, err := pipeline.New(cfg, deps, c, logger, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func result(t *testing.T, o *graph.Outcome) *pipeline.Result {
	t.Helper()
	if !o.Succeeded() {
		t.Fatalf("run failed: %s %v (path %v, errors %+v)", o.Reason, o.Err, o.Path, o.State.Errors())
	}
	r, ok := o.Payload.(*pipeline.Result)
	if !ok {
		t.Fatalf("payload: got %T", o.Payload)
	}
	return r
}

// edges records every (step, edge) pair the runner follows.
type edges struct {
	mu    sync.Mutex
	seen  map[[2]string]bool
	steps map[string][]time.Duration
	runs  atomic.Int32
}

func newEdges() *edges {
	return &edges{seen: make(map[[2]string]bool), steps: make(map[string][]time.Duration)}
}

func (e *edges) StepCompleted(_, step, edge string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen[[2]string{step, edge}] = true
	e.steps[step] = append(e.steps[step], d)
}

func (e *edges) RunCompleted(string, *graph.Outcome) {
	e.runs.Add(1)
}

func (e *edges) durations(step string) []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration(nil), e.steps[step]...)
}
