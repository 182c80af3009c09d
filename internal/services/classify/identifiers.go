package classify

import (
	"regexp"
	"strings"

	"github.com/JaimeStill/gather/adapter"
)

var (
	doiPattern    = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[-._;()/:a-z0-9]+[a-z0-9])`)
	arxivURL      = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5})(?:v\d+)?`)
	arxivLabel    = regexp.MustCompile(`(?i)\barxiv:\s?(\d{4}\.\d{4,5})(?:v\d+)?`)
	pubmedURL     = regexp.MustCompile(`(?i)pubmed\.ncbi\.nlm\.nih\.gov/(\d{1,9})`)
	pubmedLabel   = regexp.MustCompile(`\bPMID:?\s*(\d{1,9})\b`)
	trailingPunct = ".,;:)"
)

// DetectIdentifiers finds a DOI, arXiv ID and PubMed ID in the target and
// text. Target matches take precedence.
func DetectIdentifiers(target, text string) adapter.Identifiers {
	var ids adapter.Identifiers

	for _, s := range []string{target, text} {
		if ids.DOI == "" {
			if m := doiPattern.FindStringSubmatch(s); m != nil {
				ids.DOI = strings.ToLower(strings.TrimRight(m[1], trailingPunct))
			}
		}
		if ids.ArXiv == "" {
			if m := arxivURL.FindStringSubmatch(s); m != nil {
				ids.ArXiv = m[1]
			} else if m := arxivLabel.FindStringSubmatch(s); m != nil {
				ids.ArXiv = m[1]
			}
		}
		if ids.PubMed == "" {
			if m := pubmedURL.FindStringSubmatch(s); m != nil {
				ids.PubMed = m[1]
			} else if m := pubmedLabel.FindStringSubmatch(s); m != nil {
				ids.PubMed = m[1]
			}
		}
	}

	return ids
}
