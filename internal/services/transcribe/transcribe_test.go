package transcribe_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/services/transcribe"
)

var logger = slog.New(slog.DiscardHandler)

// script writes an executable that prints stdout and exits with code.
func script(t *testing.T, stdout, stderr string, code int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	body := fmt.Sprintf("#!/bin/sh\ncat <<'JSON'\n%s\nJSON\necho '%s' >&2\nexit %d\n", stdout, stderr, code)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?feature=share&v=abc123", "abc123", true},
		{"https://vimeo.com/12345", "", false},
	}

	for _, tt := range tests {
		got, ok := transcribe.VideoID(tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("VideoID(%s) = %q, %v", tt.url, got, ok)
		}
	}
}

func TestClean(t *testing.T) {
	seg := func(s string) transcribe.Event {
		var e transcribe.Event
		e.Segs = append(e.Segs, struct {
			UTF8 string `json:"utf8"`
		}{s})
		return e
	}

	events := []transcribe.Event{
		seg("[Music]"),
		seg("hello   there"),
		seg("hello there"),
		seg("general (inaudible) kenobi"),
		seg("\n"),
	}
	if got := transcribe.Clean(events); got != "hello there general kenobi" {
		t.Errorf("got %q", got)
	}
}

const subtitles = `{"events": [
  {"tStartMs": 0, "dDurationMs": 1000, "segs": [{"utf8": "[Music]"}]},
  {"tStartMs": 1000, "dDurationMs": 2000, "segs": [{"utf8": "Welcome "}, {"utf8": "to the lecture"}]},
  {"tStartMs": 3000, "dDurationMs": 500},
  {"tStartMs": 3500, "dDurationMs": 2000, "segs": [{"utf8": "on graphs"}]}
]}`

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/en.json3":
			io.WriteString(w, subtitles)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	meta := fmt.Sprintf(`{
  "id": "abc123",
  "title": "Graph Lecture",
  "uploader": "University",
  "duration": 3600.5,
  "description": " A lecture. ",
  "subtitles": {"de": [{"ext": "json3", "url": "%[1]s/de.json3"}]},
  "automatic_captions": {"en": [{"ext": "vtt", "url": "%[1]s/en.vtt"}, {"ext": "json3", "url": "%[1]s/en.json3"}]}
}`, srv.URL)

	y := transcribe.New(script(t, meta, "", 0), "fr", srv.Client(), 5*time.Second, logger)
	tr, err := y.Transcribe(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatal(err)
	}

	if tr.VideoID != "abc123" || tr.Title != "Graph Lecture" || tr.Channel != "University" {
		t.Errorf("metadata: %+v", tr)
	}
	if tr.DurationSec != 3600 || tr.Description != "A lecture." {
		t.Errorf("duration/description: %+v", tr)
	}
	if tr.Language != "en" {
		t.Errorf("language: got %q", tr.Language)
	}
	if tr.Text != "Welcome to the lecture on graphs" {
		t.Errorf("text: got %q", tr.Text)
	}
}

func TestTranscribeNoSubtitles(t *testing.T) {
	y := transcribe.New(script(t, `{"id": "x1", "title": "Silent"}`, "", 0), "en", nil, time.Second, logger)
	tr, err := y.Transcribe(context.Background(), "https://youtu.be/x1")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "" || tr.Title != "Silent" {
		t.Errorf("transcript: %+v", tr)
	}
}

func TestTranscribeFailures(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		stderr string
		code   int
		reason adapter.Reason
	}{
		{"unavailable", "", "ERROR: [youtube] x: Video unavailable", 1, adapter.ReasonNotFound},
		{"unsupported", "", "ERROR: Unsupported URL: https://example.org", 1, adapter.ReasonUnsupportedFormat},
		{"other", "", "ERROR: something broke", 1, adapter.ReasonUpstream},
		{"bad json", "not json", "", 0, adapter.ReasonCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := transcribe.New(script(t, tt.stdout, tt.stderr, tt.code), "en", nil, time.Second, logger)
			_, err := y.Transcribe(context.Background(), "https://youtu.be/x")
			if got := adapter.ReasonOf(err); got != tt.reason {
				t.Errorf("reason: got %q, want %q (%v)", got, tt.reason, err)
			}
		})
	}
}
