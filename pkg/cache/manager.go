package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// LoadFunc computes a fresh entry on a cache miss.
type LoadFunc func(ctx context.Context) (*CacheEntry, error)

// Manager handles caching operations with an in-memory backend.
type Manager struct {
	mu    sync.RWMutex
	items map[string]*CacheEntry
	group singleflight.Group
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new cache manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		items: make(map[string]*CacheEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
// Expired entries stay in place until they are overwritten.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	m.mu.RLock()
	entry, ok := m.items[key.String()]
	m.mu.RUnlock()

	if !ok || entry.ExpiredAt(m.now()) {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// Set stores entry under key, expiring ttl from now.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry, ttl time.Duration) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if ttl <= 0 {
		// Would be stale immediately, don't cache
		return nil
	}

	now := m.now()
	entry.CachedAt = now
	entry.Expires = now.Add(ttl)

	m.mu.Lock()
	m.items[key.String()] = entry
	size := len(m.items)
	m.mu.Unlock()

	CacheEntries.Set(float64(size))
	return nil
}

// GetOrCompute returns the live entry for key, or runs load, stores its
// result for ttl and returns it. Concurrent misses on the same key share one
// load. Entries that are not Cacheable are returned without being stored.
// hit reports whether the entry came from the cache.
func (m *Manager) GetOrCompute(ctx context.Context, key CacheKey, ttl time.Duration, load LoadFunc) (entry *CacheEntry, hit bool, err error) {
	if entry, err := m.Get(ctx, key); err == nil {
		CacheHits.WithLabelValues(key.Endpoint).Inc()
		return entry, true, nil
	}
	CacheMisses.WithLabelValues(key.Endpoint).Inc()

	v, err, shared := m.group.Do(key.String(), func() (interface{}, error) {
		// Another caller may have stored the entry while we waited on the lock.
		if entry, err := m.Get(ctx, key); err == nil {
			return entry, nil
		}

		entry, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, ErrInvalidEntry
		}
		if entry.Cacheable() {
			if err := m.Set(ctx, key, entry, ttl); err != nil {
				return nil, err
			}
		}
		return entry, nil
	})
	if shared {
		CacheSharedLoads.Inc()
	}
	if err != nil {
		return nil, false, err
	}
	return v.(*CacheEntry), false, nil
}

// remaining returns how long entry stays live by the manager's clock.
func (m *Manager) remaining(entry *CacheEntry) time.Duration {
	return entry.TTLAt(m.now())
}

// Len returns the number of stored entries, expired ones included.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
