// Package batch provides parallel fetching of quote records for many symbols.
//
// Yahoo Finance accepts a comma-separated symbol list per quote request. Long
// lists are split into chunks that are fetched concurrently with a bounded
// number of in-flight requests.
//
// Example usage:
//
//	config := batch.DefaultConfig()
//	fetcher := batch.NewFetcher(yahooClient, config)
//	records, err := fetcher.FetchAll(ctx, []string{"AAPL", "MSFT", "SPY"})
//
// The fetcher:
//   - Deduplicates symbols case-insensitively
//   - Splits them into chunks of at most MaxBatchSize
//   - Fetches chunks with at most MaxConcurrency requests in flight
//   - Returns partial data when some chunks fail; failed symbols are absent
//   - Returns an error only when every chunk failed
package batch
