package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/yfi-proxy/pkg/client"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxBatchSize is the maximum number of symbols per upstream request
	MaxBatchSize int
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per chunk fetch
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration for Yahoo Finance
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:   100,
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// QuoteFetcher is the interface the upstream client must implement for a
// single quote request.
type QuoteFetcher interface {
	QuoteInfo(ctx context.Context, symbols []string) (map[string]client.Record, error)
}

// Fetcher handles parallel fetching of symbol chunks
type Fetcher struct {
	fetcher QuoteFetcher
	config  Config
}

// NewFetcher creates a new batch fetcher
func NewFetcher(fetcher QuoteFetcher, config Config) *Fetcher {
	def := DefaultConfig()
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = def.MaxBatchSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}

	return &Fetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches the records of all symbols, keyed by upper-cased symbol.
// Symbols the provider does not know, or whose chunk failed, are absent.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []string) (map[string]client.Record, error) {
	start := time.Now()
	logger := log.With().Str("component", "batch-fetcher").Logger()

	chunks := Chunk(Dedupe(symbols), f.config.MaxBatchSize)
	results := make(map[string]client.Record)
	if len(chunks) == 0 {
		return results, nil
	}

	var (
		mu       sync.Mutex
		failed   int
		firstErr error
	)

	var g errgroup.Group
	g.SetLimit(f.config.MaxConcurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			chunkCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
			defer cancel()

			records, err := f.fetcher.QuoteInfo(chunkCtx, chunk)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				logger.Warn().
					Err(err).
					Int("chunk", i).
					Int("symbols", len(chunk)).
					Msg("Chunk fetch failed")
				failed++
				if firstErr == nil {
					firstErr = err
				}
				// Partial results are still useful; keep going.
				return nil
			}

			for symbol, rec := range records {
				results[symbol] = rec
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(chunks) {
		return nil, fmt.Errorf("all %d chunks failed: %w", failed, firstErr)
	}

	logger.Debug().
		Int("symbols", len(results)).
		Int("chunks", len(chunks)).
		Int("failed_chunks", failed).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

// Dedupe upper-cases symbols and drops empty and repeated entries,
// preserving first-seen order.
func Dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Chunk splits symbols into consecutive slices of at most size elements.
func Chunk(symbols []string, size int) [][]string {
	if size <= 0 {
		size = len(symbols)
	}
	var chunks [][]string
	for len(symbols) > 0 {
		n := min(size, len(symbols))
		chunks = append(chunks, symbols[:n:n])
		symbols = symbols[n:]
	}
	return chunks
}
