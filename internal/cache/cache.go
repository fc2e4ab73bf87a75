// Package cache maps (path, size, mtime) to a previously computed content
// digest so unchanged files are not rehashed across runs.
package cache

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCacheCorrupt means the store was unreadable and has been archived
	// and recreated empty.
	ErrCacheCorrupt = errors.New("hash cache corrupt")

	// ErrCacheUnavailable means no durable store could be opened and a
	// volatile in-memory cache is used instead.
	ErrCacheUnavailable = errors.New("hash cache unavailable")

	// ErrCacheFatal means a strict cache could not be reinitialized.
	ErrCacheFatal = errors.New("hash cache unusable")
)

// HashCache is a digest cache keyed by path and validated by size and mtime.
// A Get error is advisory and should be treated as a miss.
type HashCache interface {
	Get(path string, size int64, mtime time.Time) (digest string, ok bool, err error)
	Put(path string, size int64, mtime time.Time, digest string) error
	Close() error
}

type memEntry struct {
	size   int64
	mtime  int64
	digest string
}

// MemoryCache is a volatile HashCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry)}
}

func (m *MemoryCache) Get(path string, size int64, mtime time.Time) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[path]
	m.mu.RUnlock()
	if !ok || e.size != size || e.mtime != mtime.UnixNano() {
		return "", false, nil
	}
	return e.digest, true, nil
}

func (m *MemoryCache) Put(path string, size int64, mtime time.Time, digest string) error {
	m.mu.Lock()
	m.entries[path] = memEntry{size: size, mtime: mtime.UnixNano(), digest: digest}
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCache) Close() error { return nil }

// NopCache persists nothing. It stands in when no cache is configured.
type NopCache struct{}

func (NopCache) Get(string, int64, time.Time) (string, bool, error) { return "", false, nil }
func (NopCache) Put(string, int64, time.Time, string) error         { return nil }
func (NopCache) Close() error                                       { return nil }
