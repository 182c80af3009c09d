package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/pkg/cache"
)

const unknownURL = "https://example.org/unclassifiable"

func labels() map[string]adapter.Label {
	return map[string]adapter.Label{
		pdfURL:     adapter.LabelScience,
		landingURL: adapter.LabelScience,
		videoURL:   adapter.LabelVideo,
		articleURL: adapter.LabelArticle,
	}
}

func transcript(text string) adapter.Transcriber {
	return transcriberFunc(func(ctx context.Context, target string) (*adapter.Transcript, error) {
		return &adapter.Transcript{VideoID: "dQw4w9WgXcQ", Title: "Lecture", Text: text}, nil
	})
}

func foundLinks(pdfs ...string) adapter.LinkFinder {
	return linksFunc(func(ctx context.Context, q adapter.LinkQuery) (*adapter.LinkSet, error) {
		return &adapter.LinkSet{PDFs: pdfs}, nil
	})
}

// TestEveryEdgeReachable drives each branch of every step with crafted
// adapter responses and checks that together the runs follow every
// declared edge and nothing else.
func TestEveryEdgeReachable(t *testing.T) {
	failing := extractorFunc(func(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error) {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat, errors.New("too short"))
	})

	tests := []struct {
		name   string
		target string
		setup  func(d *pipeline.Deps, s *site)
		status graph.Status
		reason graph.Reason
	}{
		{
			name:   "pdf science",
			target: pdfURL,
			status: graph.StatusSuccess,
		},
		{
			name:   "unresolved query",
			target: "nothing matches this",
			setup: func(d *pipeline.Deps, _ *site) {
				d.Resolver = nullRegistry(&calls{}, "openalex")
			},
			status: graph.StatusFailure,
			reason: pipeline.ReasonUnresolved,
		},
		{
			name:   "resolved query exported",
			target: "Graph Methods",
			setup: func(d *pipeline.Deps, _ *site) {
				d.Resolver = &registry{name: "openalex", fn: func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
					return &adapter.Record{Source: "openalex", Title: q.Title, PDFURLs: []string{pdfURL}}, nil
				}}
				d.Exporter = exporterFunc(func(ctx context.Context, key string, data []byte) (string, error) {
					return "memory://" + key, nil
				})
			},
			status: graph.StatusSuccess,
		},
		{
			name:   "fetch exhausted",
			target: pdfURL,
			setup: func(_ *pipeline.Deps, s *site) {
				s.fail[pdfURL] = adapter.ReasonTransport
			},
			status: graph.StatusFailure,
			reason: pipeline.ReasonFetchExhausted,
		},
		{
			name:   "video transcript",
			target: videoURL,
			setup: func(d *pipeline.Deps, _ *site) {
				d.Transcriber = transcript("never gonna give you up")
			},
			status: graph.StatusSuccess,
		},
		{
			name:   "video without transcript",
			target: videoURL,
			setup: func(d *pipeline.Deps, _ *site) {
				d.Transcriber = transcriberFunc(func(ctx context.Context, target string) (*adapter.Transcript, error) {
					return nil, adapter.Fail(adapter.OpTranscribe, adapter.ReasonNotFound, errors.New("video unavailable"))
				})
			},
			status: graph.StatusSuccess,
		},
		{
			name:   "article",
			target: articleURL,
			status: graph.StatusSuccess,
		},
		{
			name:   "article fallback",
			target: articleURL,
			setup: func(d *pipeline.Deps, _ *site) {
				d.Articles = failing
			},
			status: graph.StatusSuccess,
		},
		{
			name:   "landing page links fail to fetch",
			target: landingURL,
			setup: func(d *pipeline.Deps, s *site) {
				d.Links = foundLinks(fullPDFURL)
				s.fail[fullPDFURL] = adapter.ReasonTransport
			},
			status: graph.StatusSuccess,
		},
		{
			name:   "landing page without links",
			target: landingURL,
			setup: func(d *pipeline.Deps, _ *site) {
				d.Links = foundLinks()
			},
			status: graph.StatusSuccess,
		},
		{
			name:   "classifier failure with nothing to extract",
			target: unknownURL,
			setup: func(d *pipeline.Deps, s *site) {
				s.pages[unknownURL] = page(unknownURL, "application/octet-stream", "\x00\x01")
				d.Documents = failing
			},
			status: graph.StatusFailure,
			reason: pipeline.ReasonUnsupportedContent,
		},
	}

	obs := newEdges()
	cfg := testConfig(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &calls{}
			s := newSite(c)
			deps := pipeline.Deps{
				Classifier: byURL(c, labels()),
				Documents:  documents(c),
				Articles:   documents(c),
			}
			if tt.setup != nil {
				tt.setup(&deps, s)
			}
			deps.Fetcher = s.fetcher()

			o := newSystem(t, cfg, deps, nil, graph.WithObserver(obs)).
				Run(context.Background(), pipeline.RunRequest{Target: tt.target})

			if o.Status != tt.status || o.Reason != tt.reason {
				t.Fatalf("outcome: %s %s %v (path %v)", o.Status, o.Reason, o.Err, o.Path)
			}
		})
	}

	g, err := pipeline.Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	declared := make(map[[2]string]bool)
	for _, info := range g.Describe() {
		for _, edge := range info.Edges {
			declared[[2]string{info.Name, edge}] = true
			if !obs.seen[[2]string{info.Name, edge}] {
				t.Errorf("edge %s -> %s never followed", info.Name, edge)
			}
		}
	}
	for pair := range obs.seen {
		if !declared[pair] {
			t.Errorf("undeclared edge followed: %s -> %s", pair[0], pair[1])
		}
	}
}

func TestDiscoveredLinksReachScience(t *testing.T) {
	c := &calls{}
	deps := pipeline.Deps{
		Fetcher:    newSite(c).fetcher(),
		Classifier: byURL(c, labels()),
		Documents:  documents(c),
		Links:      foundLinks(fullPDFURL),
	}

	o := newSystem(t, testConfig(t), deps, nil).Run(context.Background(), pipeline.RunRequest{Target: landingURL})
	r := result(t, o)

	want := "resolve fetch classify science discover science finalize"
	if got := strings.Join(o.Path, " "); got != want {
		t.Errorf("path: got %s", got)
	}
	if r.Extraction == nil || r.Extraction.Source != fullPDFURL {
		t.Errorf("extraction: %+v", r.Extraction)
	}
	if len(r.PDFLinks) != 1 || r.PDFLinks[0] != fullPDFURL {
		t.Errorf("pdf links: %v", r.PDFLinks)
	}
}

func TestRegistryFailureIsRecorded(t *testing.T) {
	c := &calls{}
	broken := &registry{name: "crossref", fn: func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
		return nil, adapter.Fail(adapter.OpRegistry, adapter.ReasonUpstream, errors.New("503"))
	}}
	found := &registry{name: "openalex", fn: func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
		return &adapter.Record{Source: "openalex", Title: "Graph Methods", DOI: "10.1234/graphs"}, nil
	}}

	deps := pipeline.Deps{
		Fetcher:    newSite(c).fetcher(),
		Classifier: fixedClassifier(c, adapter.LabelScience, 0.9),
		Registries: []adapter.Registry{found, broken},
		Documents:  documents(c),
	}

	o := newSystem(t, testConfig(t), deps, nil).Run(context.Background(), pipeline.RunRequest{Target: pdfURL})
	r := result(t, o)

	if !r.MetadataComplete || len(r.Records) != 1 || r.Identifiers.DOI != "10.1234/graphs" {
		t.Errorf("metadata: %+v", r)
	}
	errs := o.State.Errors()
	if len(errs) != 1 || errs[0].Step != pipeline.StepScience || errs[0].Reason != string(adapter.ReasonUpstream) {
		t.Errorf("errors: %+v", errs)
	}
	if len(r.Errors) != 1 {
		t.Errorf("result errors: %+v", r.Errors)
	}
}

func TestIdempotentReplay(t *testing.T) {
	c := &calls{}
	counted := func(name string, r adapter.Record) adapter.Registry {
		return &registry{name: name, fn: func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
			c.inc(name)
			return &r, nil
		}}
	}

	deps := pipeline.Deps{
		Fetcher:    newSite(c).fetcher(),
		Classifier: byURL(c, labels()),
		Registries: []adapter.Registry{
			counted("openalex", adapter.Record{Source: "openalex", Title: "Graph Methods", PDFURLs: []string{fullPDFURL}}),
			counted("crossref", adapter.Record{Source: "crossref", Title: "Graph Methods", Year: 2024}),
		},
		Documents: documents(c),
		Exporter: exporterFunc(func(ctx context.Context, key string, data []byte) (string, error) {
			c.inc("export")
			return "memory://" + key, nil
		}),
	}

	memo := cache.NewMemory(0, time.Hour, time.Minute)
	sys := newSystem(t, testConfig(t), deps, nil)

	first := sys.Run(context.Background(), pipeline.RunRequest{Target: landingURL, Cache: memo})
	r1 := result(t, first)
	before := c.snapshot()

	second := sys.Run(context.Background(), pipeline.RunRequest{Target: landingURL, Cache: memo})
	r2 := result(t, second)

	if after := c.snapshot(); !maps.Equal(before, after) {
		t.Errorf("adapter calls on replay: before %v, after %v", before, after)
	}
	for _, name := range []string{"fetch", "classify", "openalex", "crossref", "extract", "export"} {
		if before[name] == 0 {
			t.Errorf("%s never called on first run", name)
		}
	}

	j1, _ := json.Marshal(r1)
	j2, _ := json.Marshal(r2)
	if string(j1) != string(j2) {
		t.Errorf("results differ:\n%s\n%s", j1, j2)
	}
	if r1.Location == "" || !r1.FullTextExtracted || len(r1.Records) != 2 {
		t.Errorf("result: %s", j1)
	}
}

func TestExportFailureStillSucceeds(t *testing.T) {
	c := &calls{}
	deps := pipeline.Deps{
		Fetcher:    newSite(c).fetcher(),
		Classifier: fixedClassifier(c, adapter.LabelScience, 0.9),
		Documents:  documents(c),
		Exporter: exporterFunc(func(ctx context.Context, key string, data []byte) (string, error) {
			return "", adapter.Fail(adapter.OpExport, adapter.ReasonUpstream, errors.New("403"))
		}),
	}

	o := newSystem(t, testConfig(t), deps, nil).Run(context.Background(), pipeline.RunRequest{Target: pdfURL})
	r := result(t, o)
	if r.Location != "" || len(r.Errors) != 1 || o.State.Has(pipeline.SlotExport) {
		t.Errorf("result: %+v", r)
	}
}

func TestExportKey(t *testing.T) {
	a := pipeline.ExportKey("https://Example.org/paper.pdf#page=2")
	b := pipeline.ExportKey("https://example.org/paper.pdf")
	if a != b {
		t.Errorf("equivalent targets: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "result/") || !strings.HasSuffix(a, ".json") {
		t.Errorf("key: %s", a)
	}
}

func TestIdempotentReplayWithRecordedError(t *testing.T) {
	c := &calls{}
	deps := pipeline.Deps{
		Fetcher:    newSite(c).fetcher(),
		Classifier: fixedClassifier(c, adapter.LabelScience, 0.9),
		Registries: []adapter.Registry{
			&registry{name: "openalex", fn: func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
				c.inc("openalex")
				return &adapter.Record{Source: "openalex", Title: "Graph Methods", DOI: "10.1234/graphs"}, nil
			}},
			&registry{name: "crossref", fn: func(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
				c.inc("crossref")
				return nil, adapter.Fail(adapter.OpRegistry, adapter.ReasonUpstream, errors.New("503"))
			}},
		},
		Documents: documents(c),
	}

	memo := cache.NewMemory(0, time.Hour, time.Minute)
	sys := newSystem(t, testConfig(t), deps, nil)

	r1 := result(t, sys.Run(context.Background(), pipeline.RunRequest{Target: pdfURL, Cache: memo}))
	before := c.snapshot()
	r2 := result(t, sys.Run(context.Background(), pipeline.RunRequest{Target: pdfURL, Cache: memo}))

	if after := c.snapshot(); !maps.Equal(before, after) {
		t.Errorf("adapter calls on replay: before %v, after %v", before, after)
	}
	if before["crossref"] != 1 {
		t.Errorf("crossref calls: got %d, want 1", before["crossref"])
	}

	if len(r1.Errors) != 1 || r1.Errors[0].Message != "crossref: registry: upstream_error: 503" {
		t.Errorf("first run errors: %+v", r1.Errors)
	}

	j1, _ := json.Marshal(r1)
	j2, _ := json.Marshal(r2)
	if string(j1) != string(j2) {
		t.Errorf("results differ:\n%s\n%s", j1, j2)
	}
}
