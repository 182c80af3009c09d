// Package links discovers full-text document links on fetched pages, by
// scanning anchors and citation metadata or by asking a model to choose
// among candidate anchors.
package links

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/services/markup"
)

var pdfHints = []string{"pdf", "download", "full text", "fulltext", "full-text"}

// Scan finds PDF links in HTML from citation_pdf_url metadata and anchors
// whose path ends in .pdf or whose text names a PDF download.
type Scan struct {
	limit int
}

// NewScan creates an anchor scanner returning at most limit PDF links.
// Zero returns every link found.
func NewScan(limit int) *Scan {
	return &Scan{limit: limit}
}

func (s *Scan) FindLinks(ctx context.Context, q adapter.LinkQuery) (*adapter.LinkSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, adapter.Classify(adapter.OpLinks, err)
	}

	page, err := parse(q)
	if err != nil {
		return nil, err
	}

	set := &adapter.LinkSet{PDFs: []string{}}
	seen := make(map[string]bool)
	add := func(u string) {
		if !seen[u] && (s.limit <= 0 || len(set.PDFs) < s.limit) {
			seen[u] = true
			set.PDFs = append(set.PDFs, u)
		}
	}

	for _, meta := range page.MetaAll("citation_pdf_url") {
		if abs, ok := resolve(q.Target, meta); ok {
			add(abs)
		}
	}

	for _, l := range page.Links(q.Target) {
		switch {
		case IsPDFLink(l.URL, l.Text):
			add(l.URL)
		case sameSite(q.Target, l.URL):
			set.Pages = append(set.Pages, l.URL)
		}
	}

	return set, nil
}

// IsPDFLink reports whether an anchor likely downloads a PDF.
func IsPDFLink(u, text string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	if strings.EqualFold(path.Ext(parsed.Path), ".pdf") {
		return true
	}
	if strings.Contains(strings.ToLower(parsed.Path), "/pdf/") {
		return true
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "pdf") && containsAny(lower, pdfHints)
}

func parse(q adapter.LinkQuery) (*markup.Page, error) {
	if !markup.IsHTML(q.ContentType, q.Content) {
		return nil, adapter.Fail(adapter.OpLinks, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: links require html, got %q", q.Target, q.ContentType))
	}
	page, err := markup.Parse(q.Content)
	if err != nil {
		return nil, adapter.Fail(adapter.OpLinks, adapter.ReasonCorrupt, err)
	}
	return page, nil
}

func resolve(base, ref string) (string, bool) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	if b, err := url.Parse(base); err == nil {
		r = b.ResolveReference(r)
	}
	if r.Scheme != "http" && r.Scheme != "https" {
		return "", false
	}
	r.Fragment = ""
	return r.String(), true
}

func sameSite(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	return err1 == nil && err2 == nil && strings.EqualFold(ua.Hostname(), ub.Hostname())
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
