package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/graph"
)

// IsURL reports whether target is an absolute http(s) URL.
func IsURL(target string) bool {
	u, err := url.Parse(strings.TrimSpace(target))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// fetchTarget is the URL a run fetches: the resolved URL for a search
// query, otherwise the run target.
func fetchTarget(s *graph.State) string {
	if r, ok := graph.Get[*Resolution](s, SlotResolve); ok && r != nil {
		return r.URL
	}
	return strings.TrimSpace(s.Target())
}

func fetched(s *graph.State) (*adapter.FetchResult, error) {
	fr, ok := graph.Get[*adapter.FetchResult](s, SlotFetch)
	if !ok || fr == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingSlot, SlotFetch)
	}
	return fr, nil
}

func classification(s *graph.State) *adapter.Classification {
	c, _ := graph.Get[*adapter.Classification](s, SlotClassify)
	return c
}

func pageURL(fr *adapter.FetchResult) string {
	if fr.FinalURL != "" {
		return fr.FinalURL
	}
	return fr.Target
}

func document(fr *adapter.FetchResult) adapter.Document {
	return adapter.Document{
		Source:      pageURL(fr),
		ContentType: fr.ContentType,
		Data:        fr.Content,
	}
}

func record(sc *graph.Scope, err error) {
	sc.RecordError(string(adapter.ReasonOf(err)), err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
