// Package cache provides the in-process quote response cache.
//
// Entries are keyed by the endpoint and the request arguments that select the
// response, and expire a fixed TTL after they were computed. Expired entries
// are never deleted; the next request for the key recomputes and overwrites
// them.
//
// # Basic Usage
//
//	manager := cache.NewManager()
//
//	key := cache.CacheKey{
//		Endpoint:   "quote",
//		PathParams: map[string]string{"ticker": "AAPL"},
//	}
//
//	entry, hit, err := manager.GetOrCompute(ctx, key, 15*time.Minute,
//		func(ctx context.Context) (*cache.CacheEntry, error) {
//			return &cache.CacheEntry{Data: body, StatusCode: http.StatusOK}, nil
//		})
//
// # HTTP Middleware
//
//	r.With(cache.Middleware(manager, ttl, func(r *http.Request) cache.CacheKey {
//		return cache.CacheKey{
//			Endpoint:   "quote",
//			PathParams: map[string]string{"ticker": chi.URLParam(r, "ticker")},
//		}
//	})).Get("/quote/{ticker}", handleQuote)
//
// Only 200 responses are stored. Concurrent misses for one key share a single
// computation.
//
// # Metrics
//
//   - yfi_cache_hits_total{endpoint} - Cache hits
//   - yfi_cache_misses_total{endpoint} - Cache misses
//   - yfi_cache_entries - Stored entries, expired ones included
//   - yfi_cache_shared_loads_total - Callers whose miss was served by a shared load
package cache
