package extract_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/services/extract"
)

var logger = slog.New(slog.DiscardHandler)

// buildPDF writes a single-page PDF whose content stream is content.
func buildPDF(title, content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Title (%s) >>", title),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDF(t *testing.T) {
	p := extract.NewPDF(0, logger)

	t.Run("text", func(t *testing.T) {
		data := buildPDF("Sample Paper", "BT /F1 12 Tf 72 720 Td (Abstract of the sample paper) Tj ET")
		ex, err := p.Extract(context.Background(), adapter.Document{Source: "paper.pdf", ContentType: "application/pdf", Data: data})
		if err != nil {
			t.Fatal(err)
		}
		if ex.Text != "Abstract of the sample paper" || ex.Pages != 1 || ex.Words != 5 {
			t.Errorf("extraction: %+v", ex)
		}
		if ex.Format != "pdf" {
			t.Errorf("format: got %s", ex.Format)
		}
	})

	failures := []struct {
		name   string
		data   []byte
		reason adapter.Reason
	}{
		{"not a pdf", []byte("<html></html>"), adapter.ReasonUnsupportedFormat},
		{"corrupt", []byte("%PDF-1.4\nthis is not really a pdf"), adapter.ReasonCorrupt},
		{"no text", buildPDF("Scan", "q 100 0 0 100 0 0 cm Q"), adapter.ReasonUnsupportedFormat},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Extract(context.Background(), adapter.Document{Source: "x.pdf", Data: tt.data})
			if got := adapter.ReasonOf(err); got != tt.reason {
				t.Errorf("reason: got %q, want %q (%v)", got, tt.reason, err)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		ct   string
		data string
		want extract.Kind
		ok   bool
	}{
		{"application/pdf", "", extract.KindPDF, true},
		{"text/html; charset=utf-8", "", extract.KindHTML, true},
		{"text/plain", "", extract.KindText, true},
		{"application/octet-stream", "%PDF-1.7", extract.KindPDF, true},
		{"", "<!doctype html><html>", extract.KindHTML, true},
		{"", "just some words", extract.KindText, true},
		{"image/png", "\x89PNG", "", false},
		{"", "\x00\x01\x02", "", false},
	}

	for _, tt := range tests {
		got, ok := extract.KindOf(tt.ct, []byte(tt.data))
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindOf(%q, %q) = %s, %v; want %s, %v", tt.ct, tt.data, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMux(t *testing.T) {
	article := "<html><head><title>Story</title></head><body><nav>Menu</nav><article><p>" +
		strings.Repeat("news ", 30) + "</p></article></body></html>"

	m := extract.NewMux().
		Handle(extract.KindHTML, extract.NewHTML(20)).
		Handle(extract.KindText, extract.Text{})

	t.Run("html", func(t *testing.T) {
		ex, err := m.Extract(context.Background(), adapter.Document{Source: "s", ContentType: "text/html", Data: []byte(article)})
		if err != nil {
			t.Fatal(err)
		}
		if ex.Title != "Story" || ex.Words != 30 || strings.Contains(ex.Text, "Menu") {
			t.Errorf("extraction: %+v", ex)
		}
	})

	t.Run("text", func(t *testing.T) {
		ex, err := m.Extract(context.Background(), adapter.Document{Source: "s", ContentType: "text/markdown", Data: []byte("# Notes\nbody text")})
		if err != nil {
			t.Fatal(err)
		}
		if ex.Title != "Notes" || ex.Words != 4 {
			t.Errorf("extraction: %+v", ex)
		}
	})

	failures := []struct {
		name string
		doc  adapter.Document
	}{
		{"empty", adapter.Document{Source: "s", ContentType: "text/html"}},
		{"unknown type", adapter.Document{Source: "s", ContentType: "image/png", Data: []byte{0x89}}},
		{"unrouted kind", adapter.Document{Source: "s", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}},
		{"short article", adapter.Document{Source: "s", ContentType: "text/html", Data: []byte("<p>too short</p>")}},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Extract(context.Background(), tt.doc)
			if got := adapter.ReasonOf(err); got != adapter.ReasonUnsupportedFormat {
				t.Errorf("reason: got %q (%v)", got, err)
			}
		})
	}

	if _, err := (extract.Text{}).Extract(context.Background(), adapter.Document{Data: []byte{0xff, 0xfe}}); adapter.ReasonOf(err) != adapter.ReasonCorrupt {
		t.Errorf("invalid utf-8: got %v", err)
	}
}
