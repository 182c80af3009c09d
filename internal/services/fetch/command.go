package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/JaimeStill/gather/adapter"
)

// URLPlaceholder is replaced by the target in Command arguments.
const URLPlaceholder = "{url}"

// Command fetches a rendered DOM by running an external headless browser,
// for example `chromium --headless --dump-dom {url}`.
type Command struct {
	path         string
	args         []string
	humanizeArgs []string
	logger       *slog.Logger
}

// NewCommand creates a browser fetcher. When args contain no URLPlaceholder
// the target is appended.
func NewCommand(path string, args, humanizeArgs []string, logger *slog.Logger) *Command {
	return &Command{
		path:         path,
		args:         args,
		humanizeArgs: humanizeArgs,
		logger:       logger.With("system", "fetch.command"),
	}
}

func (c *Command) Fetch(ctx context.Context, target string, opts adapter.FetchOptions) (*adapter.FetchResult, error) {
	timeout := opts.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := adapter.Bound(ctx, timeout)
	defer cancel()

	args := c.buildArgs(target, opts.Humanize)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, adapter.Fail(adapter.OpFetch, adapter.ReasonTimeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, adapter.Fail(adapter.OpFetch, adapter.ReasonTransport,
				fmt.Errorf("%s: %w: %s", c.path, err, strings.TrimSpace(stderr.String())))
		}
		return nil, adapter.Fail(adapter.OpFetch, adapter.ReasonUpstream, fmt.Errorf("%s: %w", c.path, err))
	}

	if stdout.Len() == 0 {
		return nil, adapter.Fail(adapter.OpFetch, adapter.ReasonUpstream,
			fmt.Errorf("%s produced no output", c.path))
	}

	c.logger.InfoContext(ctx, "rendered",
		"target", target,
		"bytes", stdout.Len(),
		"duration", time.Since(start),
	)

	return &adapter.FetchResult{
		Target:      target,
		FinalURL:    target,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Content:     stdout.Bytes(),
		Metadata:    map[string]string{"renderer": c.path},
	}, nil
}

func (c *Command) buildArgs(target string, humanize bool) []string {
	args := make([]string, 0, len(c.args)+len(c.humanizeArgs)+1)
	if humanize {
		args = append(args, c.humanizeArgs...)
	}

	placed := false
	for _, a := range c.args {
		if strings.Contains(a, URLPlaceholder) {
			a = strings.ReplaceAll(a, URLPlaceholder, target)
			placed = true
		}
		args = append(args, a)
	}
	if !placed {
		args = append(args, target)
	}
	return args
}

// Router sends headless requests to a browser fetcher and everything else
// to a plain fetcher.
type Router struct {
	Plain   adapter.Fetcher
	Browser adapter.Fetcher
}

func (r *Router) Fetch(ctx context.Context, target string, opts adapter.FetchOptions) (*adapter.FetchResult, error) {
	if opts.Headless && r.Browser != nil {
		return r.Browser.Fetch(ctx, target, opts)
	}
	return r.Plain.Fetch(ctx, target, opts)
}
