// Package quote resolves tickers to prices and quote records.
package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/yfi-proxy/pkg/batch"
	"github.com/Sternrassler/yfi-proxy/pkg/client"
	"github.com/Sternrassler/yfi-proxy/pkg/option"
	"github.com/Sternrassler/yfi-proxy/pkg/price"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PriceMode selects how a stock quote is turned into a price.
type PriceMode string

const (
	// PriceModeExtracted applies the price field fallback and rounds to cents.
	PriceModeExtracted PriceMode = "extracted"

	// PriceModeRaw returns the regularMarketPrice field as the provider sent it.
	PriceModeRaw PriceMode = "raw"
)

// ParsePriceMode validates s as a PriceMode.
func ParsePriceMode(s string) (PriceMode, error) {
	switch m := PriceMode(strings.ToLower(s)); m {
	case PriceModeExtracted, PriceModeRaw:
		return m, nil
	default:
		return "", fmt.Errorf("invalid price mode %q (want %q or %q)", s, PriceModeExtracted, PriceModeRaw)
	}
}

// Config holds the service configuration.
type Config struct {
	PriceMode PriceMode
	Batch     batch.Config
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		PriceMode: PriceModeExtracted,
		Batch:     batch.DefaultConfig(),
	}
}

// Service answers quote, info and batch quote requests.
type Service struct {
	provider Provider
	batch    *batch.Fetcher
	mode     PriceMode
	logger   zerolog.Logger
}

// NewService creates a service backed by provider.
func NewService(provider Provider, cfg Config) *Service {
	if cfg.PriceMode == "" {
		cfg.PriceMode = PriceModeExtracted
	}
	return &Service{
		provider: provider,
		batch:    batch.NewFetcher(provider, cfg.Batch),
		mode:     cfg.PriceMode,
		logger:   log.With().Str("component", "quote-service").Logger(),
	}
}

// Quote returns the price of ticker: the last traded price of an option
// contract, or the stock price per the configured PriceMode. A nil value
// means the provider has no price. Failures meant for the caller are *Error.
func (s *Service) Quote(ctx context.Context, ticker string) (any, error) {
	parsed, isOption, err := option.Parse(ticker)
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Rejected option ticker")
		return nil, &Error{Kind: KindParse, Msg: err.Error()}
	}
	if isOption {
		return s.optionQuote(ctx, parsed)
	}

	rec, err := s.record(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if s.mode == PriceModeRaw {
		return price.Raw(rec), nil
	}
	if v, ok := price.Extract(rec); ok {
		return v, nil
	}
	return nil, nil
}

func (s *Service) optionQuote(ctx context.Context, p option.Parsed) (any, error) {
	chain, err := s.provider.OptionChain(ctx, p.Underlying, p.Expiration)
	if err != nil {
		if rejected, ok := client.IsRejection(err); ok {
			return nil, &Error{Kind: KindUpstream, Msg: rejected.Message}
		}
		return nil, fmt.Errorf("fetch option chain %s: %w", p.Underlying, err)
	}

	code := p.Code()
	contract, ok := chain.Find(code, p.IsCall())
	if !ok {
		s.logger.Debug().Str("contract", code).Msg("Option not in chain")
		return nil, &Error{Kind: KindNotFound, Msg: MsgOptionNotFound}
	}
	if contract.LastPrice == nil {
		return nil, nil
	}
	return *contract.LastPrice, nil
}

// Info returns the full quote record of ticker, or of its underlying when
// ticker is an option. A nil record means the provider does not know it.
func (s *Service) Info(ctx context.Context, ticker string) (client.Record, error) {
	underlying, err := option.Underlying(ticker)
	if err != nil {
		return nil, &Error{Kind: KindParse, Msg: err.Error()}
	}
	return s.record(ctx, underlying)
}

// Quotes returns the extracted price of every symbol in the comma-separated
// tickers, keyed by the symbol as given. Unknown symbols map to nil.
//
// The mapping is returned even when the provider fails: every symbol then
// maps to nil. A provider that rejected the symbols yields a nil error; any
// other failure is returned alongside the mapping so the caller can avoid
// keeping it.
func (s *Service) Quotes(ctx context.Context, tickers string) (map[string]*float64, error) {
	var symbols []string
	for _, t := range strings.Split(tickers, ",") {
		if t = strings.TrimSpace(t); t != "" {
			symbols = append(symbols, t)
		}
	}

	records, err := s.batch.FetchAll(ctx, symbols)

	prices := make(map[string]*float64, len(symbols))
	for _, sym := range symbols {
		prices[sym] = price.Ptr(records[strings.ToUpper(sym)])
	}

	if err != nil {
		if rejected, ok := client.IsRejection(err); ok {
			s.logger.Debug().Str("message", rejected.Message).Msg("Batch quote rejected")
			return prices, nil
		}
		return prices, fmt.Errorf("fetch quotes: %w", err)
	}
	return prices, nil
}

func (s *Service) record(ctx context.Context, symbol string) (client.Record, error) {
	records, err := s.provider.QuoteInfo(ctx, []string{symbol})
	if err != nil {
		if rejected, ok := client.IsRejection(err); ok {
			return nil, &Error{Kind: KindUpstream, Msg: rejected.Message}
		}
		return nil, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	return records[strings.ToUpper(symbol)], nil
}
