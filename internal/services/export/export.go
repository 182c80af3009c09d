// Package export stores finished run results in blob storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/pkg/storage"
)

// DefaultTimeout bounds a single upload.
const DefaultTimeout = 30 * time.Second

// Blob writes results as JSON blobs under a key prefix.
type Blob struct {
	blobs   storage.System
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewBlob creates an exporter writing to blobs under prefix.
func NewBlob(blobs storage.System, prefix string, timeout time.Duration, logger *slog.Logger) *Blob {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Blob{
		blobs:   blobs,
		prefix:  strings.Trim(prefix, "/"),
		timeout: timeout,
		logger:  logger.With("system", "export"),
	}
}

// Export uploads data and returns the blob location.
func (b *Blob) Export(ctx context.Context, key string, data []byte) (string, error) {
	ctx, cancel := adapter.Bound(ctx, b.timeout)
	defer cancel()

	name := path.Join(b.prefix, key)
	if err := storage.ValidateKey(key); err != nil {
		return "", adapter.Fail(adapter.OpExport, adapter.ReasonUnsupportedFormat, err)
	}

	if err := b.blobs.Upload(ctx, name, bytes.NewReader(data), "application/json"); err != nil {
		return "", adapter.Classify(adapter.OpExport, fmt.Errorf("export %s: %w", name, err))
	}

	loc := b.blobs.Location(name)
	b.logger.InfoContext(ctx, "result exported", "key", name, "bytes", len(data))
	return loc, nil
}
