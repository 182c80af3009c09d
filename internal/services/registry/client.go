// Package registry implements scholarly metadata lookups against the
// OpenAlex and Crossref APIs.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/gather/adapter"
)

var errNotFound = errors.New("not found")

// Options tune a registry client.
type Options struct {
	BaseURL   string
	Mailto    string
	UserAgent string
	// RPS bounds requests per second. Zero disables rate limiting.
	RPS     float64
	Retries uint64
	Timeout time.Duration
	// Backoff builds the retry schedule. Nil uses an exponential schedule.
	Backoff func() backoff.BackOff
}

type client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger
}

func newClient(name string, hc *http.Client, opts Options, logger *slog.Logger) *client {
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Backoff == nil {
		opts.Backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}

	return &client{
		name:    name,
		http:    hc,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logger.With("system", "registry."+name),
	}
}

// getJSON decodes the response for u into out. It reports false when the
// registry answers 404. Throttling, server errors and transport errors are
// retried up to opts.Retries times.
func (c *client) getJSON(ctx context.Context, u string, out any) (bool, error) {
	ctx, cancel := adapter.Bound(ctx, c.opts.Timeout)
	defer cancel()

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := c.do(ctx, u, out)
		if err != nil && !errors.Is(err, errNotFound) && adapter.ReasonOf(err).Retryable() && ctx.Err() == nil {
			c.logger.WarnContext(ctx, "registry request failed", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.opts.Backoff(), c.opts.Retries), ctx)
	err := backoff.Retry(op, b)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotFound):
		return false, nil
	default:
		return false, adapter.Classify(adapter.OpRegistry, err)
	}
}

func (c *client) do(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return adapter.Fail(adapter.OpRegistry, adapter.ReasonUnsupportedFormat, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return adapter.Classify(adapter.OpRegistry, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return errNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return &adapter.Failure{
			Op:     adapter.OpRegistry,
			Reason: adapter.ReasonUpstream,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s: status %d", c.name, resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return &adapter.Failure{
			Op:     adapter.OpRegistry,
			Reason: adapter.ReasonUnsupportedFormat,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s: status %d", c.name, resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return adapter.Fail(adapter.OpRegistry, adapter.ReasonCorrupt, fmt.Errorf("%s: decode: %w", c.name, err))
	}
	return nil
}
