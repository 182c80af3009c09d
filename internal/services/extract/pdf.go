package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JaimeStill/gather/adapter"
)

var pdfMagic = []byte("%PDF-")

// PDF extracts the text of a PDF. pdfcpu validates the document and reads
// its page count and title; ledongthuc/pdf decodes page text through the
// font encodings and ToUnicode maps.
type PDF struct {
	maxPages int
	logger   *slog.Logger
}

// NewPDF creates a PDF extractor that reads at most maxPages pages. Zero
// reads every page.
func NewPDF(maxPages int, logger *slog.Logger) *PDF {
	return &PDF{
		maxPages: maxPages,
		logger:   logger.With("system", "extract.pdf"),
	}
}

func (p *PDF) Extract(ctx context.Context, doc adapter.Document) (*adapter.Extraction, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(doc.Data[:min(len(doc.Data), 1024)], "\x00\r\n\t "), pdfMagic) {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: not a pdf", doc.Source))
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := readPDF(doc.Data, conf)
	if err != nil {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonCorrupt, fmt.Errorf("%s: %w", doc.Source, err))
	}

	pages := pctx.PageCount
	limit := pages
	if p.maxPages > 0 {
		limit = min(limit, p.maxPages)
	}

	text, err := pageText(ctx, doc.Data, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.Classify(adapter.OpExtract, ctx.Err())
		}
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonCorrupt, fmt.Errorf("%s: %w", doc.Source, err))
	}

	words := countWords(text)
	if words == 0 {
		return nil, adapter.Fail(adapter.OpExtract, adapter.ReasonUnsupportedFormat,
			fmt.Errorf("%s: no extractable text in %d pages", doc.Source, pages))
	}

	p.logger.InfoContext(ctx, "pdf extracted", "source", doc.Source, "pages", pages, "words", words)

	return &adapter.Extraction{
		Source: doc.Source,
		Format: "pdf",
		Title:  pdfTitle(pctx),
		Text:   text,
		Pages:  pages,
		Words:  words,
	}, nil
}

// readPDF parses and validates data, converting pdfcpu panics on malformed
// input into errors.
func readPDF(data []byte, conf *model.Configuration) (pctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return api.ReadAndValidate(bytes.NewReader(data), conf)
}

// pageText returns the text of the first limit pages, separated by blank
// lines. Pages whose text cannot be decoded are skipped.
func pageText(ctx context.Context, data []byte, limit int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for n := 1; n <= min(limit, r.NumPage()); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if content = strings.Join(strings.Fields(content), " "); content != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(content)
		}
	}
	return sb.String(), nil
}

func pdfTitle(pctx *model.Context) string {
	if pctx == nil || pctx.XRefTable == nil {
		return ""
	}
	return strings.TrimSpace(pctx.XRefTable.Title)
}
