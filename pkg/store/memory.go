package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
)

var (
	// ErrEmptyKey is returned when the key string is empty.
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrNilValue is returned when attempting to save a nil value.
	ErrNilValue = errors.New("value cannot be nil")
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore implements core.KeyValueStore using an in-memory map.
// It is safe for concurrent use; expired entries are evicted on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Put stores a copy of value under key.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		return ErrNilValue
	}

	e := entry{value: append([]byte(nil), value...)}
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), e.value...), nil
}

// Take returns the value stored under key and removes it in the same critical section.
func (m *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	delete(m.entries, key)
	return e.value, nil
}

// Delete removes key if present.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// lookup must be called with m.mu held.
func (m *MemoryStore) lookup(key string) (entry, error) {
	e, exists := m.entries[key]
	if !exists {
		return entry{}, core.ErrNotFound
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return entry{}, core.ErrNotFound
	}
	return e, nil
}
