package quote

import (
	"context"
	"time"

	"github.com/Sternrassler/yfi-proxy/pkg/client"
)

//go:generate mockgen -package=quote -destination=mock_provider_test.go -source=provider.go Provider

// Provider is the market-data source behind the service.
// *client.Client implements it.
type Provider interface {
	// QuoteInfo returns quote records keyed by upper-cased symbol.
	QuoteInfo(ctx context.Context, symbols []string) (map[string]client.Record, error)

	// OptionChain returns the chain of symbol for the expiration date.
	OptionChain(ctx context.Context, symbol string, expiration time.Time) (*client.OptionChain, error)
}

var _ Provider = (*client.Client)(nil)
