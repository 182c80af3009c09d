// Package transcribe produces video transcripts from yt-dlp metadata and
// json3 subtitle tracks.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/JaimeStill/gather/adapter"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

// VideoID extracts a YouTube video ID from a URL.
func VideoID(target string) (string, bool) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(target); m != nil {
			return m[1], true
		}
	}
	return "", false
}

type track struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

type info struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Channel           string             `json:"channel"`
	Uploader          string             `json:"uploader"`
	Duration          float64            `json:"duration"`
	Description       string             `json:"description"`
	Subtitles         map[string][]track `json:"subtitles"`
	AutomaticCaptions map[string][]track `json:"automatic_captions"`
}

// YTDLP runs yt-dlp for video metadata and downloads the best matching
// json3 subtitle track.
type YTDLP struct {
	path    string
	lang    string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a transcriber. lang is the preferred subtitle language;
// English is tried after it.
func New(path, lang string, client *http.Client, timeout time.Duration, logger *slog.Logger) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	if lang == "" {
		lang = "en"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &YTDLP{
		path:    path,
		lang:    lang,
		client:  client,
		timeout: timeout,
		logger:  logger.With("system", "transcribe"),
	}
}

func (y *YTDLP) Transcribe(ctx context.Context, target string) (*adapter.Transcript, error) {
	ctx, cancel := adapter.Bound(ctx, y.timeout)
	defer cancel()

	meta, err := y.probe(ctx, target)
	if err != nil {
		return nil, err
	}

	t := &adapter.Transcript{
		VideoID:     meta.ID,
		Title:       meta.Title,
		Channel:     meta.Channel,
		DurationSec: int(meta.Duration),
		Description: strings.TrimSpace(meta.Description),
	}
	if t.VideoID == "" {
		t.VideoID, _ = VideoID(target)
	}
	if t.Channel == "" {
		t.Channel = meta.Uploader
	}

	lang, tr, ok := y.pickTrack(meta)
	if !ok {
		y.logger.InfoContext(ctx, "no subtitle track", "video_id", t.VideoID)
		return t, nil
	}

	events, err := y.download(ctx, tr.URL)
	if err != nil {
		return nil, err
	}

	t.Language = lang
	t.Text = Clean(events)

	y.logger.InfoContext(ctx, "transcribed",
		"video_id", t.VideoID,
		"language", lang,
		"segments", len(events),
		"words", len(strings.Fields(t.Text)),
	)
	return t, nil
}

func (y *YTDLP) probe(ctx context.Context, target string) (*info, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.path, "-J", "--skip-download", "--no-playlist", "--no-warnings", target)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, adapter.Fail(adapter.OpTranscribe, adapter.ReasonTimeout, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		wrapped := fmt.Errorf("yt-dlp: %w: %s", err, msg)

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, adapter.Fail(adapter.OpTranscribe, adapter.ReasonUpstream, wrapped)
		}
		return nil, adapter.Fail(adapter.OpTranscribe, probeReason(msg), wrapped)
	}

	var meta info
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, adapter.Fail(adapter.OpTranscribe, adapter.ReasonCorrupt, fmt.Errorf("decode yt-dlp output: %w", err))
	}
	return &meta, nil
}

func probeReason(stderr string) adapter.Reason {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "unsupported url"):
		return adapter.ReasonUnsupportedFormat
	case strings.Contains(s, "video unavailable"), strings.Contains(s, "private video"),
		strings.Contains(s, "http error 404"), strings.Contains(s, "does not exist"):
		return adapter.ReasonNotFound
	case strings.Contains(s, "timed out"):
		return adapter.ReasonTimeout
	case strings.Contains(s, "unable to download"), strings.Contains(s, "connection"):
		return adapter.ReasonTransport
	default:
		return adapter.ReasonUpstream
	}
}

// pickTrack prefers manual subtitles over automatic captions, and the
// configured language over English variants.
func (y *YTDLP) pickTrack(meta *info) (string, track, bool) {
	langs := []string{y.lang, "en", "en-US"}
	for _, set := range []map[string][]track{meta.Subtitles, meta.AutomaticCaptions} {
		for _, lang := range langs {
			for _, tr := range set[lang] {
				if tr.Ext == "json3" && tr.URL != "" {
					return lang, tr, true
				}
			}
		}
	}
	return "", track{}, false
}

// Event is one timed caption from a json3 subtitle track.
type Event struct {
	StartMs    int64 `json:"tStartMs"`
	DurationMs int64 `json:"dDurationMs"`
	Segs       []struct {
		UTF8 string `json:"utf8"`
	} `json:"segs"`
}

// Text joins the segments of the event.
func (e Event) Text() string {
	var sb strings.Builder
	for _, s := range e.Segs {
		sb.WriteString(s.UTF8)
	}
	return sb.String()
}

func (y *YTDLP) download(ctx context.Context, u string) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, adapter.Fail(adapter.OpTranscribe, adapter.ReasonCorrupt, err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, adapter.Classify(adapter.OpTranscribe, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &adapter.Failure{
			Op:     adapter.OpTranscribe,
			Reason: adapter.ReasonUpstream,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("subtitle download: status %d", resp.StatusCode),
		}
	}

	var doc struct {
		Events []Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, adapter.Fail(adapter.OpTranscribe, adapter.ReasonCorrupt, fmt.Errorf("decode subtitles: %w", err))
	}
	return doc.Events, nil
}

var (
	bracketed = regexp.MustCompile(`\[.*?\]`)
	parens    = regexp.MustCompile(`\(.*?\)`)
)

// Clean builds a transcript from caption events: sound annotations in
// brackets or parentheses are removed, whitespace is normalized and
// consecutive repeated captions are dropped.
func Clean(events []Event) string {
	var parts []string
	last := ""
	for _, e := range events {
		text := bracketed.ReplaceAllString(e.Text(), "")
		text = parens.ReplaceAllString(text, "")
		text = strings.Join(strings.Fields(text), " ")
		if text != "" && text != last {
			parts = append(parts, text)
			last = text
		}
	}
	return strings.Join(parts, " ")
}
