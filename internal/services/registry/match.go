package registry

import (
	"strings"
	"unicode"

	"github.com/JaimeStill/gather/internal/services/markup"
)

// MinTitleOverlap is the share of query title words a search hit must
// contain to count as the same work.
const MinTitleOverlap = 0.8

func titleWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// titleMatch reports whether candidate plausibly names the work titled query.
func titleMatch(query, candidate string) bool {
	q := titleWords(query)
	if len(q) == 0 {
		return false
	}

	have := make(map[string]bool)
	for _, w := range titleWords(candidate) {
		have[w] = true
	}

	hits := 0
	for _, w := range q {
		if have[w] {
			hits++
		}
	}
	return float64(hits)/float64(len(q)) >= MinTitleOverlap
}

// stripMarkup removes JATS or HTML tags and collapses whitespace.
func stripMarkup(s string) string {
	return markup.FragmentText(s)
}

// bareDOI lower-cases a DOI and drops any resolver prefix.
func bareDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, p)
	}
	return doi
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range list {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}
