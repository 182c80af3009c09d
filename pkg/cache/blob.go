package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/JaimeStill/gather/pkg/storage"
)

// BlobStore persists each entry as a JSON blob under prefix.
type BlobStore struct {
	blobs  storage.System
	prefix string
}

// NewBlobStore creates a store writing to blobs under prefix.
func NewBlobStore(blobs storage.System, prefix string) *BlobStore {
	return &BlobStore{blobs: blobs, prefix: strings.Trim(prefix, "/")}
}

func (b *BlobStore) blobKey(key string) string {
	return path.Join(b.prefix, strings.ReplaceAll(key, ":", "/")+".json")
}

func (b *BlobStore) Get(ctx context.Context, key string) (*Entry, error) {
	body, err := b.blobs.Download(ctx, b.blobKey(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read cache blob %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache blob %s: %w", key, err)
	}
	return &entry, nil
}

func (b *BlobStore) Set(ctx context.Context, entry *Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	return b.blobs.Upload(ctx, b.blobKey(entry.Key), bytes.NewReader(data), "application/json")
}

func (b *BlobStore) Delete(ctx context.Context, key string) error {
	err := b.blobs.Delete(ctx, b.blobKey(key))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}
