// Package auth implements the static API key gate in front of the quote
// endpoints.
package auth

import (
	"net/http"
	"os"
	"strings"

	"github.com/Sternrassler/yfi-proxy/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	// DefaultEnvVar holds the colon-separated list of accepted keys.
	DefaultEnvVar = "YFI_API_KEY"

	// TokenParam is the query parameter carrying the caller's key.
	TokenParam = "token"
)

var rejectionsTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
	Name: "yfi_auth_rejections_total",
	Help: "Total number of requests rejected for an invalid API key",
})

// KeySet is the immutable set of accepted API keys.
type KeySet map[string]struct{}

// ParseKeys splits a colon-separated key list, dropping empty entries.
func ParseKeys(raw string) KeySet {
	keys := make(KeySet)
	for _, k := range strings.Split(raw, ":") {
		if k == "" {
			continue
		}
		keys[k] = struct{}{}
	}
	return keys
}

// LoadKeys reads the key list from the environment variable envVar.
func LoadKeys(envVar string) KeySet {
	return ParseKeys(os.Getenv(envVar))
}

// Contains reports whether token is an accepted key.
func (k KeySet) Contains(token string) bool {
	if token == "" {
		return false
	}
	_, ok := k[token]
	return ok
}

// Middleware rejects requests whose token query parameter is not in keys.
// Missing and wrong tokens get the same 401 response.
func Middleware(keys KeySet, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !keys.Contains(r.URL.Query().Get(TokenParam)) {
				rejectionsTotal.Inc()
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Rejected request with invalid API key")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Invalid API Key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
