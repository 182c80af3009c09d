package registry

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/gather/adapter"
)

// CrossrefURL is the public Crossref REST API.
const CrossrefURL = "https://api.crossref.org"

type crossrefWork struct {
	DOI            string   `json:"DOI"`
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	Abstract       string   `json:"abstract"`
	URL            string   `json:"URL"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		Name   string `json:"name"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	Link []struct {
		URL         string `json:"URL"`
		ContentType string `json:"content-type"`
	} `json:"link"`
	License []struct {
		URL string `json:"URL"`
	} `json:"license"`
}

type crossrefWorkResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefSearchResponse struct {
	Message struct {
		Items []crossrefWork `json:"items"`
	} `json:"message"`
}

// Crossref looks works up by DOI or bibliographic query.
type Crossref struct {
	c *client
}

// NewCrossref creates a Crossref registry. An empty BaseURL uses CrossrefURL.
// Mailto places requests in the Crossref polite pool.
func NewCrossref(hc *http.Client, opts Options, logger *slog.Logger) *Crossref {
	if opts.BaseURL == "" {
		opts.BaseURL = CrossrefURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Mailto != "" && opts.UserAgent != "" && !strings.Contains(opts.UserAgent, "mailto:") {
		opts.UserAgent += " (mailto:" + opts.Mailto + ")"
	}
	return &Crossref{c: newClient("crossref", hc, opts, logger)}
}

func (c *Crossref) Name() string { return "crossref" }

func (c *Crossref) Lookup(ctx context.Context, q adapter.RegistryQuery) (*adapter.Record, error) {
	if doi := bareDOI(q.DOI); doi != "" {
		var resp crossrefWorkResponse
		found, err := c.c.getJSON(ctx, c.url("/works/"+doi, nil), &resp)
		if err != nil {
			return nil, err
		}
		if found {
			return c.record(&resp.Message), nil
		}
	}

	if strings.TrimSpace(q.Title) == "" {
		return nil, nil
	}

	var resp crossrefSearchResponse
	params := url.Values{"query.bibliographic": {q.Title}, "rows": {"5"}}
	if _, err := c.c.getJSON(ctx, c.url("/works", params), &resp); err != nil {
		return nil, err
	}
	for i := range resp.Message.Items {
		item := &resp.Message.Items[i]
		if len(item.Title) > 0 && titleMatch(q.Title, item.Title[0]) {
			return c.record(item), nil
		}
	}
	return nil, nil
}

func (c *Crossref) url(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if c.c.opts.Mailto != "" {
		params.Set("mailto", c.c.opts.Mailto)
	}
	u := c.c.opts.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Crossref) record(w *crossrefWork) *adapter.Record {
	if w.DOI == "" {
		return nil
	}

	rec := &adapter.Record{
		Source:   c.Name(),
		ID:       "https://doi.org/" + bareDOI(w.DOI),
		DOI:      bareDOI(w.DOI),
		Abstract: stripMarkup(w.Abstract),
		URL:      w.URL,
	}
	if len(w.Title) > 0 {
		rec.Title = stripMarkup(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		rec.Venue = w.ContainerTitle[0]
	}
	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		rec.Year = w.Issued.DateParts[0][0]
	}

	for _, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = a.Name
		}
		if name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}

	for _, l := range w.Link {
		if strings.Contains(strings.ToLower(l.ContentType), "pdf") {
			rec.PDFURLs = appendUnique(rec.PDFURLs, l.URL)
		}
	}
	rec.OpenAccess = len(w.License) > 0 && len(rec.PDFURLs) > 0

	return rec
}
