package adapter

import (
	"context"
	"time"
)

// Adapter operation names. They prefix cache keys and Failure.Op.
const (
	OpFetch      = "fetch"
	OpClassify   = "classify"
	OpRegistry   = "registry"
	OpExtract    = "extract"
	OpTranscribe = "transcribe"
	OpLinks      = "links"
	OpExport     = "export"
)

// FetchOptions are the recognized fetch options.
type FetchOptions struct {
	Headless  bool `json:"headless"`
	Humanize  bool `json:"humanize"`
	TimeoutMS int  `json:"timeout_ms"`
}

// Timeout returns TimeoutMS as a duration.
func (o FetchOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// FetchResult is fetched content with its type hint and response metadata.
type FetchResult struct {
	Target      string            `json:"target"`
	FinalURL    string            `json:"final_url"`
	StatusCode  int               `json:"status_code"`
	ContentType string            `json:"content_type"`
	Content     []byte            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Fetcher retrieves a target.
type Fetcher interface {
	Fetch(ctx context.Context, target string, opts FetchOptions) (*FetchResult, error)
}

// Label is a content classification.
type Label string

// Labels.
const (
	LabelScience Label = "science"
	LabelVideo   Label = "video"
	LabelArticle Label = "article"
	LabelGeneric Label = "generic"
)

// Priority lists labels in tie-break order.
var Priority = []Label{LabelScience, LabelVideo, LabelArticle, LabelGeneric}

// Valid reports whether l is a known label.
func (l Label) Valid() bool {
	switch l {
	case LabelScience, LabelVideo, LabelArticle, LabelGeneric:
		return true
	default:
		return false
	}
}

// Identifiers are scholarly identifiers detected in content.
type Identifiers struct {
	DOI    string `json:"doi,omitempty"`
	ArXiv  string `json:"arxiv,omitempty"`
	PubMed string `json:"pubmed,omitempty"`
}

// Empty reports whether no identifier was found.
func (i Identifiers) Empty() bool {
	return i.DOI == "" && i.ArXiv == "" && i.PubMed == ""
}

// ClassifyInput is the content a classifier inspects.
type ClassifyInput struct {
	Target      string `json:"target"`
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Text        string `json:"text"`
}

// Classification is a label with confidence in [0,1]. Scores, when
// present, holds the confidence for every label considered.
type Classification struct {
	Label       Label             `json:"label"`
	Confidence  float64           `json:"confidence"`
	Scores      map[Label]float64 `json:"scores,omitempty"`
	Identifiers Identifiers       `json:"identifiers"`
	Title       string            `json:"title,omitempty"`
	Rationale   string            `json:"rationale,omitempty"`
}

// Classifier labels content.
type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (*Classification, error)
}

// RegistryQuery identifies a work by DOI or title.
type RegistryQuery struct {
	DOI   string `json:"doi,omitempty"`
	Title string `json:"title,omitempty"`
}

// Record is registry metadata for a work.
type Record struct {
	Source     string   `json:"source"`
	ID         string   `json:"id"`
	DOI        string   `json:"doi,omitempty"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Year       int      `json:"year,omitempty"`
	Venue      string   `json:"venue,omitempty"`
	Abstract   string   `json:"abstract,omitempty"`
	URL        string   `json:"url,omitempty"`
	PDFURLs    []string `json:"pdf_urls,omitempty"`
	OpenAccess bool     `json:"open_access"`
}

// Registry looks up works in one external registry. A work the registry
// does not know is reported as (nil, nil).
type Registry interface {
	Name() string
	Lookup(ctx context.Context, q RegistryQuery) (*Record, error)
}

// Document is raw content to extract text from.
type Document struct {
	Source      string `json:"source"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Extraction is text extracted from a Document.
type Extraction struct {
	Source string `json:"source"`
	Format string `json:"format"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
	Pages  int    `json:"pages,omitempty"`
	Words  int    `json:"words"`
}

// Extractor extracts text. Unreadable input fails with
// ReasonUnsupportedFormat or ReasonCorrupt.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (*Extraction, error)
}

// Transcript is the text and metadata of a video.
type Transcript struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Channel     string `json:"channel,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`
}

// Transcriber produces a transcript for a video target.
type Transcriber interface {
	Transcribe(ctx context.Context, target string) (*Transcript, error)
}

// LinkQuery is a fetched page to search for document links.
type LinkQuery struct {
	Target      string `json:"target"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// LinkSet holds absolute links found on a page.
type LinkSet struct {
	PDFs  []string `json:"pdfs"`
	Pages []string `json:"pages,omitempty"`
}

// LinkFinder discovers document links on a page.
type LinkFinder interface {
	FindLinks(ctx context.Context, q LinkQuery) (*LinkSet, error)
}

// Exporter stores a finished result and returns its location.
type Exporter interface {
	Export(ctx context.Context, key string, data []byte) (string, error)
}

// Top returns the highest scoring label. Equal scores resolve in Priority
// order. An empty map yields LabelGeneric with zero confidence.
func Top(scores map[Label]float64) (Label, float64) {
	best, conf := LabelGeneric, -1.0
	for _, l := range Priority {
		s, ok := scores[l]
		if ok && s > conf {
			best, conf = l, s
		}
	}
	if conf < 0 {
		return LabelGeneric, 0
	}
	return best, conf
}
