package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/JaimeStill/gather/pkg/cache"
)

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func key(op string, input any) (string, error) {
	k, err := cache.Fingerprint(op, input)
	if err != nil {
		return "", Fail(op, ReasonCorrupt, err)
	}
	return k, nil
}

type cachedFetcher struct {
	next  Fetcher
	cache *cache.Cache
}

// CachedFetcher consults c before calling next. A nil cache returns next.
func CachedFetcher(next Fetcher, c *cache.Cache) Fetcher {
	if c == nil {
		return next
	}
	return &cachedFetcher{next: next, cache: c}
}

func (f *cachedFetcher) Fetch(ctx context.Context, target string, opts FetchOptions) (*FetchResult, error) {
	k, err := key(OpFetch, struct {
		Target  string       `json:"target"`
		Options FetchOptions `json:"options"`
	}{target, opts})
	if err != nil {
		return nil, err
	}
	return cache.Do(ctx, f.cache, k, func(ctx context.Context) (*FetchResult, error) {
		return f.next.Fetch(ctx, target, opts)
	})
}

type cachedClassifier struct {
	next  Classifier
	cache *cache.Cache
}

// CachedClassifier consults c before calling next. A nil cache returns next.
func CachedClassifier(next Classifier, c *cache.Cache) Classifier {
	if c == nil {
		return next
	}
	return &cachedClassifier{next: next, cache: c}
}

func (cl *cachedClassifier) Classify(ctx context.Context, in ClassifyInput) (*Classification, error) {
	k, err := key(OpClassify, in)
	if err != nil {
		return nil, err
	}
	return cache.Do(ctx, cl.cache, k, func(ctx context.Context) (*Classification, error) {
		return cl.next.Classify(ctx, in)
	})
}

type cachedRegistry struct {
	next  Registry
	cache *cache.Cache
}

// CachedRegistry consults c before calling next. Not-found results are
// cached like any other value. A nil cache returns next.
func CachedRegistry(next Registry, c *cache.Cache) Registry {
	if c == nil {
		return next
	}
	return &cachedRegistry{next: next, cache: c}
}

func (r *cachedRegistry) Name() string {
	return r.next.Name()
}

func (r *cachedRegistry) Lookup(ctx context.Context, q RegistryQuery) (*Record, error) {
	k, err := key(OpRegistry, struct {
		Registry string        `json:"registry"`
		Query    RegistryQuery `json:"query"`
	}{r.next.Name(), q})
	if err != nil {
		return nil, err
	}
	return cache.Do(ctx, r.cache, k, func(ctx context.Context) (*Record, error) {
		return r.next.Lookup(ctx, q)
	})
}

type cachedExtractor struct {
	next  Extractor
	name  string
	cache *cache.Cache
}

// CachedExtractor consults c before calling next. Documents are keyed by
// name and a digest of their bytes, so extractors with different rules
// over the same document do not share entries. A nil cache returns next.
func CachedExtractor(next Extractor, name string, c *cache.Cache) Extractor {
	if c == nil {
		return next
	}
	return &cachedExtractor{next: next, name: name, cache: c}
}

func (e *cachedExtractor) Extract(ctx context.Context, doc Document) (*Extraction, error) {
	k, err := key(OpExtract, struct {
		Extractor   string `json:"extractor"`
		Source      string `json:"source"`
		ContentType string `json:"content_type"`
		Digest      string `json:"digest"`
	}{e.name, doc.Source, doc.ContentType, digest(doc.Data)})
	if err != nil {
		return nil, err
	}
	return cache.Do(ctx, e.cache, k, func(ctx context.Context) (*Extraction, error) {
		return e.next.Extract(ctx, doc)
	})
}

type cachedTranscriber struct {
	next  Transcriber
	cache *cache.Cache
}

// CachedTranscriber consults c before calling next. A nil cache returns next.
func CachedTranscriber(next Transcriber, c *cache.Cache) Transcriber {
	if c == nil {
		return next
	}
	return &cachedTranscriber{next: next, cache: c}
}

func (t *cachedTranscriber) Transcribe(ctx context.Context, target string) (*Transcript, error) {
	k, err := key(OpTranscribe, target)
	if err != nil {
		return nil, err
	}
	return cache.Do(ctx, t.cache, k, func(ctx context.Context) (*Transcript, error) {
		return t.next.Transcribe(ctx, target)
	})
}

type cachedLinkFinder struct {
	next  LinkFinder
	cache *cache.Cache
}

// CachedLinkFinder consults c before calling next. A nil cache returns next.
func CachedLinkFinder(next LinkFinder, c *cache.Cache) LinkFinder {
	if c == nil {
		return next
	}
	return &cachedLinkFinder{next: next, cache: c}
}

func (l *cachedLinkFinder) FindLinks(ctx context.Context, q LinkQuery) (*LinkSet, error) {
	k, err := key(OpLinks, struct {
		Target      string `json:"target"`
		ContentType string `json:"content_type"`
		Digest      string `json:"digest"`
	}{q.Target, q.ContentType, digest(q.Content)})
	if err != nil {
		return nil, err
	}
	return cache.Do(ctx, l.cache, k, func(ctx context.Context) (*LinkSet, error) {
		return l.next.FindLinks(ctx, q)
	})
}

type cachedExporter struct {
	next  Exporter
	cache *cache.Cache
}

// CachedExporter skips exports of identical data under the same key. A nil
// cache returns next.
func CachedExporter(next Exporter, c *cache.Cache) Exporter {
	if c == nil {
		return next
	}
	return &cachedExporter{next: next, cache: c}
}

func (e *cachedExporter) Export(ctx context.Context, exportKey string, data []byte) (string, error) {
	k, err := key(OpExport, struct {
		Key    string `json:"key"`
		Digest string `json:"digest"`
	}{exportKey, digest(data)})
	if err != nil {
		return "", err
	}
	return cache.Do(ctx, e.cache, k, func(ctx context.Context) (string, error) {
		return e.next.Export(ctx, exportKey, data)
	})
}
