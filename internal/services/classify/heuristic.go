// Package classify implements content classifiers: a rule-based classifier
// over URL, content type and markup signals, and a model-backed classifier
// using the OpenAI chat completion API.
package classify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/services/markup"
)

var videoHosts = []string{
	"youtube.com", "youtu.be", "vimeo.com", "dailymotion.com", "twitch.tv",
}

var scholarlyHosts = []string{
	"arxiv.org", "doi.org", "pubmed.ncbi.nlm.nih.gov", "ncbi.nlm.nih.gov",
	"biorxiv.org", "medrxiv.org", "sciencedirect.com", "springer.com",
	"nature.com", "ieeexplore.ieee.org", "dl.acm.org", "plos.org",
	"semanticscholar.org", "openalex.org", "researchgate.net", "jstor.org",
	"wiley.com", "tandfonline.com", "frontiersin.org", "mdpi.com",
}

var scholarlyTerms = []string{
	"abstract", "references", "introduction", "methods", "doi",
	"et al.", "journal", "preprint", "citation",
}

// Heuristic scores content from its URL, content type, identifiers and
// markup. It performs no I/O.
type Heuristic struct{}

// NewHeuristic creates a rule-based classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Classify(ctx context.Context, in adapter.ClassifyInput) (*adapter.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, adapter.Classify(adapter.OpClassify, err)
	}

	host := hostOf(in.Target)
	ct := strings.ToLower(in.ContentType)
	text := in.Text
	title := in.Title

	var page *markup.Page
	if markup.IsHTML(ct, []byte(text)) {
		p, err := markup.Parse([]byte(text))
		if err != nil {
			return nil, adapter.Fail(adapter.OpClassify, adapter.ReasonCorrupt, err)
		}
		page = p
		if title == "" {
			title = p.Title()
		}
		text = p.Text()
	}

	ids := DetectIdentifiers(in.Target, in.Text)
	if page != nil && ids.DOI == "" {
		if doi := page.Meta("citation_doi"); doi != "" {
			ids.DOI = strings.ToLower(doi)
		}
	}

	scores := map[adapter.Label]float64{
		adapter.LabelScience: scienceScore(host, ct, ids, page, text),
		adapter.LabelVideo:   videoScore(host, ct, page),
		adapter.LabelArticle: articleScore(page, text),
		adapter.LabelGeneric: 0.3,
	}

	label, conf := adapter.Top(scores)
	return &adapter.Classification{
		Label:       label,
		Confidence:  conf,
		Scores:      scores,
		Identifiers: ids,
		Title:       title,
		Rationale:   fmt.Sprintf("rule scores for host %q and content type %q", host, ct),
	}, nil
}

func scienceScore(host, ct string, ids adapter.Identifiers, page *markup.Page, text string) float64 {
	score := 0.0
	if matchesHost(host, scholarlyHosts) {
		score += 0.5
	}
	if strings.HasPrefix(ct, "application/pdf") {
		score += 0.5
	}
	if ids.DOI != "" {
		score += 0.3
	}
	if ids.ArXiv != "" || ids.PubMed != "" {
		score += 0.3
	}
	if page != nil && (page.Meta("citation_title") != "" || page.Meta("citation_pdf_url") != "") {
		score += 0.3
	}

	lower := strings.ToLower(text[:min(len(text), 20000)])
	hits := 0
	for _, term := range scholarlyTerms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	score += 0.05 * float64(min(hits, 4))

	return clamp(score)
}

func videoScore(host, ct string, page *markup.Page) float64 {
	score := 0.0
	if matchesHost(host, videoHosts) {
		score += 0.9
	}
	if strings.HasPrefix(ct, "video/") {
		score += 0.9
	}
	if page != nil {
		if strings.HasPrefix(page.Meta("og:type"), "video") {
			score += 0.4
		}
		if page.Has(atom.Video) {
			score += 0.2
		}
	}
	return clamp(score)
}

func articleScore(page *markup.Page, text string) float64 {
	if page == nil {
		if strings.TrimSpace(text) == "" {
			return 0
		}
		return 0.2
	}

	score := 0.0
	if page.Has(atom.Article) {
		score += 0.4
	}
	if page.Meta("og:type") == "article" || page.Meta("article:published_time") != "" {
		score += 0.3
	}
	if page.Meta("author") != "" {
		score += 0.1
	}
	if words := len(strings.Fields(page.MainText())); words >= 300 {
		score += 0.2
	}
	if page.Count(atom.P) >= 5 {
		score += 0.1
	}
	return clamp(score)
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func matchesHost(host string, list []string) bool {
	for _, h := range list {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
