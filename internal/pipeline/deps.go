package pipeline

import (
	"log/slog"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/pkg/cache"
)

// Deps bundles the adapters pipeline steps call. It is built once per
// process and passed to every run by value. Optional adapters may be nil;
// the steps that use them degrade instead of failing.
type Deps struct {
	Fetcher     adapter.Fetcher
	Classifier  adapter.Classifier
	Resolver    adapter.Registry
	Registries  []adapter.Registry
	Documents   adapter.Extractor
	Articles    adapter.Extractor
	Transcriber adapter.Transcriber
	Links       adapter.LinkFinder
	Exporter    adapter.Exporter
	Logger      *slog.Logger
}

// WithCache returns a copy of d whose adapters consult c. A nil cache
// returns d unchanged.
func (d Deps) WithCache(c *cache.Cache) Deps {
	if c == nil {
		return d
	}

	out := d
	if d.Fetcher != nil {
		out.Fetcher = adapter.CachedFetcher(d.Fetcher, c)
	}
	if d.Classifier != nil {
		out.Classifier = adapter.CachedClassifier(d.Classifier, c)
	}
	if d.Resolver != nil {
		out.Resolver = adapter.CachedRegistry(d.Resolver, c)
	}
	out.Registries = make([]adapter.Registry, len(d.Registries))
	for i, r := range d.Registries {
		out.Registries[i] = adapter.CachedRegistry(r, c)
	}
	if d.Documents != nil {
		out.Documents = adapter.CachedExtractor(d.Documents, "documents", c)
	}
	if d.Articles != nil {
		out.Articles = adapter.CachedExtractor(d.Articles, "articles", c)
	}
	if d.Transcriber != nil {
		out.Transcriber = adapter.CachedTranscriber(d.Transcriber, c)
	}
	if d.Links != nil {
		out.Links = adapter.CachedLinkFinder(d.Links, c)
	}
	if d.Exporter != nil {
		out.Exporter = adapter.CachedExporter(d.Exporter, c)
	}
	return out
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}
