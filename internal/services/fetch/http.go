// Package fetch implements the fetch adapter over plain HTTP and over an
// external headless browser command.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JaimeStill/gather/adapter"
)

// DefaultTimeout applies when FetchOptions.TimeoutMS is zero.
const DefaultTimeout = 30 * time.Second

var errTooLarge = errors.New("response body exceeds limit")

// HTTP fetches targets with net/http.
type HTTP struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

// NewHTTP creates an HTTP fetcher. A nil client uses a default client.
func NewHTTP(client *http.Client, userAgent string, maxBytes int64, logger *slog.Logger) *HTTP {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{
		client:    client,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		logger:    logger.With("system", "fetch.http"),
	}
}

func (h *HTTP) Fetch(ctx context.Context, target string, opts adapter.FetchOptions) (*adapter.FetchResult, error) {
	timeout := opts.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := adapter.Bound(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, adapter.Fail(adapter.OpFetch, adapter.ReasonUnsupportedFormat, err)
	}
	h.setHeaders(req, opts.Humanize)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, adapter.Classify(adapter.OpFetch, err)
	}
	defer resp.Body.Close()

	if f := statusFailure(resp.StatusCode); f != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, f
	}

	body, err := h.read(resp.Body)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, adapter.Fail(adapter.OpFetch, adapter.ReasonUnsupportedFormat, err)
		}
		return nil, adapter.Classify(adapter.OpFetch, err)
	}

	h.logger.InfoContext(ctx, "fetched",
		"target", target,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return &adapter.FetchResult{
		Target:      target,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Content:     body,
		Metadata:    headerMetadata(resp.Header),
	}, nil
}

func (h *HTTP) setHeaders(req *http.Request, humanize bool) {
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	if humanize {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}
}

func (h *HTTP) read(r io.Reader) ([]byte, error) {
	if h.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, h.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", errTooLarge, h.maxBytes)
	}
	return body, nil
}

func statusFailure(code int) *adapter.Failure {
	if code < 400 {
		return nil
	}

	err := fmt.Errorf("unexpected status %d", code)
	var f *adapter.Failure
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		f = adapter.Fail(adapter.OpFetch, adapter.ReasonNotFound, err)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		f = adapter.Fail(adapter.OpFetch, adapter.ReasonTimeout, err)
	case code == http.StatusTooManyRequests || code >= 500:
		f = adapter.Fail(adapter.OpFetch, adapter.ReasonUpstream, err)
	case code == http.StatusUnsupportedMediaType:
		f = adapter.Fail(adapter.OpFetch, adapter.ReasonUnsupportedFormat, err)
	default:
		f = adapter.Fail(adapter.OpFetch, adapter.ReasonNotFound, err)
	}
	f.Status = code
	return f
}

func headerMetadata(h http.Header) map[string]string {
	md := make(map[string]string)
	for _, name := range []string{"Last-Modified", "ETag", "Content-Disposition", "Content-Language"} {
		if v := h.Get(name); v != "" {
			md[strings.ToLower(name)] = v
		}
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
