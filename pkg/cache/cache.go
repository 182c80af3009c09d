// Package cache provides a result cache that runs at most one computation
// per key at a time, keeps successes for a long TTL and failures for a short
// one, and persists completed entries through a pluggable Store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the JSON encoding of a value for a key.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Lookup results reported to an Observer.
const (
	ResultHit        = "hit"
	ResultMiss       = "miss"
	ResultFailureHit = "failure_hit"
	ResultShared     = "shared"
)

// Observer receives cache events. Implementations must be safe for
// concurrent use.
type Observer interface {
	Lookup(op, result string)
	Computed(op string, d time.Duration, err error)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Backend      string `json:"backend"`
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Computations int64  `json:"computations"`
	Failures     int64  `json:"failures"`
	FailureHits  int64  `json:"failure_hits"`
	Shared       int64  `json:"shared"`
	Abandoned    int64  `json:"abandoned"`
	StoreErrors  int64  `json:"store_errors"`
	InFlight     int    `json:"in_flight"`
}

// Options configure a Cache.
type Options struct {
	Backend    string
	TTL        time.Duration
	FailureTTL time.Duration
	Observer   Observer
	Logger     *slog.Logger
}

type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type failure struct {
	err      error
	failedAt time.Time
	retryAt  time.Time
}

// Cache is safe for concurrent use by many runs.
type Cache struct {
	store      Store
	backend    string
	ttl        time.Duration
	failureTTL time.Duration
	observer   Observer
	logger     *slog.Logger

	group    singleflight.Group
	mu       sync.Mutex
	flights  map[string]*flight
	failures map[string]*failure

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
	failed       atomic.Int64
	failureHits  atomic.Int64
	shared       atomic.Int64
	abandoned    atomic.Int64
	storeErrors  atomic.Int64
}

// New creates a Cache over store.
func New(store Store, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Backend == "" {
		opts.Backend = BackendMemory
	}
	return &Cache{
		store:      store,
		backend:    opts.Backend,
		ttl:        opts.TTL,
		failureTTL: opts.FailureTTL,
		observer:   opts.Observer,
		logger:     logger.With("system", "cache", "backend", opts.Backend),
		flights:    make(map[string]*flight),
		failures:   make(map[string]*failure),
	}
}

// NewMemory creates a Cache over a MemoryStore, mostly for tests and tools.
func NewMemory(maxEntries int, ttl, failureTTL time.Duration) *Cache {
	return New(NewMemoryStore(maxEntries), Options{TTL: ttl, FailureTTL: failureTTL})
}

type retryKey struct{}

// WithRetry marks ctx as retrying: GetOrCompute ignores a remembered failure
// and computes again. Stored successes are still returned.
func WithRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryKey{}, true)
}

func retrying(ctx context.Context) bool {
	v, _ := ctx.Value(retryKey{}).(bool)
	return v
}

// GetOrCompute returns the value stored for key, computing it with fn when
// absent. Concurrent callers with the same key share one invocation of fn and
// observe the same value or the same error. A caller whose ctx ends stops
// waiting; the computation is cancelled once no caller is waiting on it.
func (c *Cache) GetOrCompute(ctx context.Context, key string, fn ComputeFunc) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	op := opOf(key)

	for {
		if value, ok := c.load(ctx, key); ok {
			c.hits.Add(1)
			c.observe(op, ResultHit)
			return value, nil
		}

		if err := c.recentFailure(key); err != nil && !retrying(ctx) {
			c.failureHits.Add(1)
			c.observe(op, ResultFailureHit)
			return nil, err
		}

		c.misses.Add(1)
		c.observe(op, ResultMiss)

		value, err, shared := c.wait(ctx, key, op, fn)
		if shared {
			c.shared.Add(1)
			c.observe(op, ResultShared)
		}

		if errors.Is(err, ErrAbandoned) && ctx.Err() == nil {
			continue
		}
		return value, err
	}
}

// Do is the typed form of GetOrCompute. Every caller, including the one that
// ran fn, decodes the stored JSON, so all callers observe identical values. A
// nil Cache calls fn directly.
func Do[T any](ctx context.Context, c *Cache, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fn(ctx)
	}

	var zero T

	data, err := c.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return out, nil
}

// Invalidate drops the stored entry and any remembered failure for key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.failures, key)
	c.mu.Unlock()

	if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	inFlight := len(c.flights)
	c.mu.Unlock()

	return Stats{
		Backend:      c.backend,
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Failures:     c.failed.Load(),
		FailureHits:  c.failureHits.Load(),
		Shared:       c.shared.Load(),
		Abandoned:    c.abandoned.Load(),
		StoreErrors:  c.storeErrors.Load(),
		InFlight:     inFlight,
	}
}

func (c *Cache) wait(ctx context.Context, key, op string, fn ComputeFunc) ([]byte, error, bool) {
	c.mu.Lock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	ch := c.group.DoChan(key, func() (any, error) {
		defer func() {
			c.mu.Lock()
			if c.flights[key] == f {
				delete(c.flights, key)
			}
			c.mu.Unlock()
			f.cancel()
		}()
		return c.compute(f.ctx, key, op, fn)
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		c.leave(key, f)
		if res.Err != nil {
			return nil, res.Err, res.Shared
		}
		return res.Val.([]byte), nil, res.Shared
	case <-ctx.Done():
		c.leave(key, f)
		return nil, ctx.Err(), false
	}
}

func (c *Cache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	f.cancel()
}

func (c *Cache) compute(ctx context.Context, key, op string, fn ComputeFunc) (value []byte, err error) {
	if v, ok := c.load(ctx, key); ok {
		return v, nil
	}

	start := time.Now()
	c.computations.Add(1)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrComputePanic, rec, debug.Stack())
			value = nil
		}

		if c.observer != nil {
			c.observer.Computed(op, time.Since(start), err)
		}

		if err == nil {
			return
		}
		if ctx.Err() != nil {
			c.abandoned.Add(1)
			err = fmt.Errorf("%w: %w", ErrAbandoned, err)
			return
		}
		c.failed.Add(1)
		c.remember(key, err)
	}()

	value, err = fn(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &Entry{Key: key, Value: value, CreatedAt: now}
	if c.ttl > 0 {
		entry.ExpiresAt = now.Add(c.ttl)
	}

	if serr := c.store.Set(ctx, entry); serr != nil {
		c.storeErrors.Add(1)
		c.logger.Warn("cache store write failed", "key", key, "error", serr)
	}

	return value, nil
}

func (c *Cache) load(ctx context.Context, key string) ([]byte, bool) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.storeErrors.Add(1)
			c.logger.Warn("cache store read failed", "key", key, "error", err)
		}
		return nil, false
	}

	if entry.Expired(time.Now()) {
		if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache store delete failed", "key", key, "error", err)
		}
		return nil, false
	}

	return entry.Value, true
}

func (c *Cache) remember(key string, err error) {
	if c.failureTTL <= 0 {
		return
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, f := range c.failures {
		if !now.Before(f.retryAt) {
			delete(c.failures, k)
		}
	}

	c.failures[key] = &failure{
		err:      err,
		failedAt: now,
		retryAt:  now.Add(c.failureTTL),
	}
}

func (c *Cache) recentFailure(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.failures[key]
	if !ok {
		return nil
	}
	if !time.Now().Before(f.retryAt) {
		delete(c.failures, key)
		return nil
	}
	return &FailedError{Key: key, Err: f.err, FailedAt: f.failedAt, RetryAt: f.retryAt}
}

func (c *Cache) observe(op, result string) {
	if c.observer != nil {
		c.observer.Lookup(op, result)
	}
}

func opOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
