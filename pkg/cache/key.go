package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached response.
type CacheKey struct {
	// Endpoint is the handler identity (e.g., "quote", "info")
	Endpoint string

	// PathParams are the path parameters (e.g., {"ticker": "AAPL"})
	PathParams map[string]string

	// QueryParams are the query parameters that select the response.
	// Credentials such as the API token must not be included.
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: yfi:endpoint:param1=val1:query1=val1
//
// Example:
//
//	yfi:quote:ticker=AAPL
func (k CacheKey) String() string {
	parts := []string{"yfi"}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add path params (sorted for determinism)
	if len(k.PathParams) > 0 {
		pathKeys := make([]string, 0, len(k.PathParams))
		for key := range k.PathParams {
			pathKeys = append(pathKeys, key)
		}
		sort.Strings(pathKeys)

		for _, key := range pathKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.PathParams[key]))
		}
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
