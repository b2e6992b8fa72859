package cache

import (
	"net/http"
	"strings"
	"time"
)

// CacheEntry represents a cached quote response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// ExpiredAt returns true if the entry is stale at now.
// An entry is served only while now is strictly before Expires.
func (e *CacheEntry) ExpiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTLAt returns the time left until expiration at now.
// Returns 0 if already expired.
func (e *CacheEntry) TTLAt(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Cacheable reports whether the entry may be stored: a 200 response whose
// handler did not mark it Cache-Control: no-store.
func (e *CacheEntry) Cacheable() bool {
	if e.StatusCode != http.StatusOK {
		return false
	}
	return !strings.Contains(strings.ToLower(e.Headers.Get("Cache-Control")), "no-store")
}
