package registry

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/JaimeStill/gather/adapter"
)

// OpenAlexURL is the public OpenAlex API.
const OpenAlexURL = "https://api.openalex.org"

type openAlexWork struct {
	ID              string `json:"id"`
	DOI             string `json:"doi"`
	DisplayName     string `json:"display_name"`
	PublicationYear int    `json:"publication_year"`
	Authorships     []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation *openAlexLocation  `json:"primary_location"`
	BestOALocation  *openAlexLocation  `json:"best_oa_location"`
	Locations       []openAlexLocation `json:"locations"`
	OpenAccess      struct {
		IsOA  bool   `json:"is_oa"`
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

type openAlexLocation struct {
	LandingPageURL string `json:"landing_page_url"`
	PDFURL         string `json:"pdf_url"`
	Source         *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

type openAlexSearch struct {
	Results []openAlexWork `json:"results"`
}

// OpenAlex looks works up by DOI or title search.
type OpenAlex struct {
	c *client
}

// NewOpenAlex creates an OpenAlex registry. An empty BaseURL uses OpenAlexURL.
func NewOpenAlex(hc *http.Client, opts Options, logger *slog.Logger) *OpenAlex {
	if opts.BaseURL == "" {
		opts.BaseURL = OpenAlexURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &OpenAlex{c: newClient("openalex", hc, opts, logger)}
}

func (o *OpenAlex) Name() string { return "openalex" }

func (o *OpenAlex) Lookup(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
	if doi := bareDOI(q.DOI); doi != "" {
		var w openAlexWork
		found, err := o.c.getJSON(ctx, o.url("/works/doi:"+doi, nil), &w)
		if err != nil {
			return nil, err
		}
		if found {
			return o.record(&w), nil
		}
	}

	if strings.TrimSpace(q.Title) == "" {
		return nil, nil
	}

	var res openAlexSearch
	params := url.Values{"search": {q.Title}, "per-page": {"5"}}
	if _, err := o.c.getJSON(ctx, o.url("/works", params), &res); err != nil {
		return nil, err
	}
	for i := range res.Results {
		if titleMatch(q.Title, res.Results[i].DisplayName) {
			return o.record(&res.Results[i]), nil
		}
	}
	return nil, nil
}

func (o *OpenAlex) url(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if o.c.opts.Mailto != "" {
		params.Set("mailto", o.c.opts.Mailto)
	}
	u := o.c.opts.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (o *OpenAlex) record(w *openAlexWork) *adapter.Record {
	if w == nil || w.ID == "" {
		return nil
	}

	rec := &adapter.Record{
		Source:     o.Name(),
		ID:         w.ID,
		DOI:        bareDOI(w.DOI),
		Title:      w.DisplayName,
		Year:       w.PublicationYear,
		Abstract:   invertAbstract(w.AbstractInvertedIndex),
		OpenAccess: w.OpenAccess.IsOA,
	}

	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			rec.Authors = append(rec.Authors, a.Author.DisplayName)
		}
	}

	if loc := w.PrimaryLocation; loc != nil {
		rec.URL = loc.LandingPageURL
		if loc.Source != nil {
			rec.Venue = loc.Source.DisplayName
		}
	}
	if rec.URL == "" && rec.DOI != "" {
		rec.URL = "https://doi.org/" + rec.DOI
	}

	if loc := w.BestOALocation; loc != nil {
		rec.PDFURLs = appendUnique(rec.PDFURLs, loc.PDFURL)
	}
	if loc := w.PrimaryLocation; loc != nil {
		rec.PDFURLs = appendUnique(rec.PDFURLs, loc.PDFURL)
	}
	for _, loc := range w.Locations {
		rec.PDFURLs = appendUnique(rec.PDFURLs, loc.PDFURL)
	}
	if strings.HasSuffix(strings.ToLower(w.OpenAccess.OAURL), ".pdf") {
		rec.PDFURLs = appendUnique(rec.PDFURLs, w.OpenAccess.OAURL)
	}

	return rec
}

// invertAbstract rebuilds abstract text from OpenAlex's word position index.
func invertAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type pos struct {
		at   int
		word string
	}
	var words []pos
	for w, positions := range index {
		for _, p := range positions {
			words = append(words, pos{p, w})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].at < words[j].at })

	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.word
	}
	return strings.Join(out, " ")
}
