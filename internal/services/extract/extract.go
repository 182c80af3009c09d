// Package extract implements text extraction for HTML articles, PDFs and
// plain text, and a Mux that routes documents by content type.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/services/markup"
)

// Kind is a document family recognized by the Mux.
type Kind string

// Document kinds.
const (
	KindHTML Kind = "html"
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

// KindOf determines the document family from the content type, falling
// back to sniffing the leading bytes.
func KindOf(contentType string, data []byte) (Kind, bool) {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mt == "application/pdf" || mt == "application/x-pdf":
		return KindPDF, true
	case mt == "text/html" || mt == "application/xhtml+xml":
		return KindHTML, true
	case mt == "text/plain" || mt == "text/markdown":
		return KindText, true
	}

	if mt != "" && mt != "application/octet-stream" && mt != "binary/octet-stream" {
		return "", false
	}

	head := data[:min(len(data), 1024)]
	switch {
	case bytes.HasPrefix(bytes.TrimSpace(head), pdfMagic):
		return KindPDF, true
	case markup.IsHTML("", head):
		return KindHTML, true
	case len(head) > 0 && utf8.Valid(head) && !bytes.ContainsRune(head, 0):
		return KindText, true
	}
	return "", false
}

// Mux routes documents to the extractor registered for their kind.
type Mux struct {
	routes map[Kind]adapter.Extractor
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[Kind]adapter.Extractor)}
}

// Handle registers e for documents of kind k.
func (m *Mux) Handle(k Kind, e adapter.Extractor) *Mux {
	m.routes[k] = e
	return m
}

func (m *Mux) Extract(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error) {
	if len(doc.Data) == 0 {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: empty document", doc.Source))
	}

	kind, ok := KindOf(doc.ContentType, doc.Data)
	if !ok {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: unsupported content type %q", doc.Source, doc.ContentType))
	}

	e, ok := m.routes[kind]
	if !ok {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: no extractor for %s", doc.Source, kind))
	}
	return e.Extract(ctx, doc)
}

// HTML extracts the main article text of a page.
type HTML struct {
	minWords int
}

// NewHTML creates an article extractor. Pages with fewer than minWords
// words of main text fail with ReasonUnsupportedFormat.
func NewHTML(minWords int) *HTML {
	return &HTML{minWords: minWords}
}

func (h *HTML) Extract(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, adapter.Classify(adapter.OpExtract, err)
	}

	page, err := markup.Parse(doc.Data)
	if err != nil {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonCorrupt, err)
	}

	text := page.MainText()
	words := countWords(text)
	if words == 0 || words < h.minWords {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: %d words of article text", doc.Source, words))
	}

	return &adapter.Extraction{
		Source: doc.Source,
		Format: string(KindHTML),
		Title:  page.Title(),
		Text:   text,
		Words:  words,
	}, nil
}

// Text passes through UTF-8 plain text.
type Text struct{}

func (Text) Extract(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, adapter.Classify(adapter.OpExtract, err)
	}
	if !utf8.Valid(doc.Data) {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonCorrupt,
			fmt.Errorf("%s: invalid utf-8", doc.Source))
	}

	text := strings.TrimSpace(string(doc.Data))
	words := countWords(text)
	if words == 0 {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: empty text", doc.Source))
	}

	title, _, _ := strings.Cut(text, "\n")
	return &adapter.Extraction{
		Source: doc.Source,
		Format: string(KindText),
		Title:  strings.TrimSpace(strings.TrimLeft(title, "# ")),
		Text:   text,
		Words:  words,
	}, nil
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
