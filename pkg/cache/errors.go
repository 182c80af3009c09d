package cache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates a store holds no entry for the key.
	ErrNotFound = errors.New("cache entry not found")
	// ErrEmptyKey indicates an empty cache key was provided.
	ErrEmptyKey = errors.New("cache key must not be empty")
	// ErrUnknownBackend indicates the configured backend is not supported.
	ErrUnknownBackend = errors.New("unknown cache backend")
	// ErrAbandoned indicates a computation was cancelled because every caller
	// waiting on it gave up.
	ErrAbandoned = errors.New("cache computation abandoned")
	// ErrComputePanic indicates a compute function panicked.
	ErrComputePanic = errors.New("cache compute panicked")
)

// FailedError is returned while a recent failure for a key is still within
// its failure TTL. Its message is the message of the original failure, so
// later callers observe the same error text as the caller that computed it.
type FailedError struct {
	Key      string
	Err      error
	FailedAt time.Time
	RetryAt  time.Time
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cached failure for %s", e.Key)
	}
	return e.Err.Error()
}

func (e *FailedError) Unwrap() error {
	return e.Err
}
