package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is a completed computation as persisted by a Store. Value holds the
// JSON encoding of the result so every backend round-trips it unchanged.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at,omitzero"`
}

// Expired reports whether the entry is past its expiry at now. A zero
// ExpiresAt never expires.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store persists completed entries. Implementations must be safe for
// concurrent use. Get returns ErrNotFound for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process LRU store bounded by entry count.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	lru        *list.List
	evictions  int64
}

// NewMemoryStore creates a store holding at most maxEntries entries. A
// maxEntries of zero or less means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}

	entry := el.Value.(*Entry)
	if entry.Expired(time.Now()) {
		m.removeLocked(el)
		return nil, ErrNotFound
	}

	m.lru.MoveToFront(el)
	clone := *entry
	return &clone, nil
}

func (m *MemoryStore) Set(_ context.Context, entry *Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *entry
	if el, ok := m.entries[entry.Key]; ok {
		el.Value = &stored
		m.lru.MoveToFront(el)
		return nil
	}

	m.entries[entry.Key] = m.lru.PushFront(&stored)

	for m.maxEntries > 0 && m.lru.Len() > m.maxEntries {
		m.removeLocked(m.lru.Back())
		m.evictions++
	}

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.removeLocked(el)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Evictions returns how many entries were dropped to stay within capacity.
func (m *MemoryStore) Evictions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

func (m *MemoryStore) removeLocked(el *list.Element) {
	entry := el.Value.(*Entry)
	m.lru.Remove(el)
	delete(m.entries, entry.Key)
}
