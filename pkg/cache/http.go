package cache

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HeaderCache reports whether a response was served from the cache.
const HeaderCache = "X-Cache"

// KeyFunc derives the cache key for a request.
type KeyFunc func(r *http.Request) CacheKey

// Middleware caches the responses of next under keyFunc(r) for ttl.
// On a miss the handler writes into a buffer; the buffered response is stored
// when it is Cacheable and then replayed to every waiting caller.
func Middleware(m *Manager, ttl time.Duration, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			logger := zerolog.Ctx(r.Context())

			entry, hit, err := m.GetOrCompute(r.Context(), key, ttl, func(ctx context.Context) (*CacheEntry, error) {
				// The load may be shared, so it must outlive this caller's request.
				buf := newBufferedResponse()
				next.ServeHTTP(buf, r.WithContext(context.WithoutCancel(ctx)))
				return buf.entry(), nil
			})
			if err != nil {
				logger.Error().Err(err).Str("key", key.String()).Msg("Cache load failed")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			logger.Debug().
				Str("key", key.String()).
				Bool("cache_hit", hit).
				Dur("ttl", m.remaining(entry)).
				Msg("Served cached endpoint")

			writeEntry(w, entry, hit)
		})
	}
}

// writeEntry replays a cache entry onto w.
func writeEntry(w http.ResponseWriter, entry *CacheEntry, hit bool) {
	for key, values := range entry.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if hit {
		w.Header().Set(HeaderCache, "HIT")
	} else {
		w.Header().Set(HeaderCache, "MISS")
	}
	w.WriteHeader(entry.StatusCode)
	_, _ = w.Write(entry.Data)
}

// bufferedResponse is an http.ResponseWriter that keeps the response in memory.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// entry converts the buffered response to a CacheEntry.
func (b *bufferedResponse) entry() *CacheEntry {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	return &CacheEntry{
		Data:       bytes.Clone(b.body.Bytes()),
		StatusCode: status,
		Headers:    b.header.Clone(),
	}
}
