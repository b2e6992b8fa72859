// Package client provides the Yahoo Finance HTTP client used to resolve
// quotes and option chains.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/Sternrassler/yfi-proxy/pkg/metrics"
	"github.com/Sternrassler/yfi-proxy/pkg/price"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "yfi_upstream_requests_total",
		Help: "Total Yahoo Finance requests by operation and status",
	}, []string{"operation", "status"})

	upstreamRequestDuration = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yfi_upstream_request_duration_seconds",
		Help:    "Yahoo Finance request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	upstreamErrorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "yfi_upstream_errors_total",
		Help: "Total Yahoo Finance errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the public Yahoo Finance query host.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "yfi-proxy/1.0"

	quotePath   = "/v7/finance/quote"
	optionsPath = "/v7/finance/options/"

	operationQuote   = "quote"
	operationOptions = "options"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Record is one provider quote record, decoded as-is.
type Record map[string]any

// Contract is one row of an option chain.
type Contract struct {
	ContractSymbol string
	Strike         float64
	// LastPrice is nil when the row carries no traded price.
	LastPrice *float64
	Raw       Record
}

// OptionChain holds the call and put contracts for one expiration.
type OptionChain struct {
	Underlying string
	Expiration time.Time
	Calls      []Contract
	Puts       []Contract
}

// Find returns the contract with the given symbol from the call or put side.
func (oc *OptionChain) Find(contractSymbol string, call bool) (Contract, bool) {
	side := oc.Puts
	if call {
		side = oc.Calls
	}
	for _, c := range side {
		if c.ContractSymbol == contractSymbol {
			return c, true
		}
	}
	return Contract{}, false
}

// Client is the Yahoo Finance client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	session    session
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Yahoo Finance API, without trailing path.
	BaseURL string

	// CookieURL is visited to obtain the session cookie before the crumb is
	// requested. Empty skips the visit.
	CookieURL string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout bounds each upstream request. There are no retries.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		CookieURL: DefaultCookieURL,
		UserAgent: DefaultUserAgent,
		Timeout:   15 * time.Second,
	}
}

// New creates a new Yahoo Finance client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.CookieURL != "" {
		cookie, err := url.Parse(cfg.CookieURL)
		if err != nil || (cookie.Scheme != "http" && cookie.Scheme != "https") {
			return nil, fmt.Errorf("cookie url must be http or https (got %q)", cfg.CookieURL)
		}
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		baseURL: base,
		config:  cfg,
		logger:  log.With().Str("component", "yahoo-client").Logger(),
	}, nil
}

// QuoteInfo fetches the quote records for symbols in one request.
// The result is keyed by upper-cased symbol; symbols the provider does not
// know are absent from the map.
func (c *Client) QuoteInfo(ctx context.Context, symbols []string) (map[string]Record, error) {
	records := make(map[string]Record, len(symbols))
	if len(symbols) == 0 {
		return records, nil
	}

	query := url.Values{"symbols": []string{strings.Join(symbols, ",")}}
	root, err := c.get(ctx, operationQuote, quotePath, query)
	if err != nil {
		return nil, err
	}

	for _, child := range root.S("quoteResponse", "result").Children() {
		rec, ok := child.Data().(map[string]any)
		if !ok {
			continue
		}
		symbol, _ := rec["symbol"].(string)
		if symbol == "" {
			continue
		}
		records[strings.ToUpper(symbol)] = Record(rec)
	}

	c.logger.Debug().
		Int("requested", len(symbols)).
		Int("returned", len(records)).
		Msg("Fetched quote records")

	return records, nil
}

// OptionChain fetches the option chain of symbol for the expiration date.
// An expiration the provider does not list is a client-class UpstreamError
// whose Message names the available dates.
func (c *Client) OptionChain(ctx context.Context, symbol string, expiration time.Time) (*OptionChain, error) {
	path := optionsPath + url.PathEscape(symbol)

	root, err := c.get(ctx, operationOptions, path, nil)
	if err != nil {
		return nil, err
	}
	result := root.S("optionChain", "result", "0")

	want := expiration.Format("2006-01-02")
	var (
		date      int64
		found     bool
		available []string
	)
	for _, child := range result.S("expirationDates").Children() {
		ts, ok := toInt64(child.Data())
		if !ok {
			continue
		}
		day := time.Unix(ts, 0).UTC().Format("2006-01-02")
		available = append(available, day)
		if day == want {
			date, found = ts, true
		}
	}
	if !found {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, &UpstreamError{
			StatusCode: http.StatusNotFound,
			Class:      ErrorClassClient,
			Message: fmt.Sprintf("Expiration `%s` cannot be found. Available expirations are: [%s]",
				want, strings.Join(available, ", ")),
		}
	}

	// The undated response already carries the nearest expiration.
	options := result.S("options", "0")
	if ts, ok := toInt64(options.S("expirationDate").Data()); !ok || ts != date {
		query := url.Values{"date": []string{strconv.FormatInt(date, 10)}}
		root, err = c.get(ctx, operationOptions, path, query)
		if err != nil {
			return nil, err
		}
		options = root.S("optionChain", "result", "0", "options", "0")
	}

	underlying, _ := result.S("underlyingSymbol").Data().(string)
	if underlying == "" {
		underlying = strings.ToUpper(symbol)
	}

	chain := &OptionChain{
		Underlying: underlying,
		Expiration: time.Unix(date, 0).UTC(),
		Calls:      contracts(options.S("calls")),
		Puts:       contracts(options.S("puts")),
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("expiration", want).
		Int("calls", len(chain.Calls)).
		Int("puts", len(chain.Puts)).
		Msg("Fetched option chain")

	return chain, nil
}

// get performs a GET request within the provider session and decodes the
// JSON body.
func (c *Client) get(ctx context.Context, operation, path string, query url.Values) (*gabs.Container, error) {
	crumb, err := c.crumb(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	for k, v := range query {
		params[k] = v
	}
	params.Set("crumb", crumb)

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("operation", operation).
		Str("path", u.Path).
		Str("query", query.Encode()).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := c.classifyError(nil, err)
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
		upstreamRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		c.logger.Error().Err(err).Str("operation", operation).Msg("HTTP request failed")
		return nil, &UpstreamError{Class: class, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := c.classifyError(resp, nil)
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
		if class == ErrorClassAuth {
			c.resetSession()
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := errorMessage(body, resp.Status)

		c.logger.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Str("message", msg).
			Msg("Upstream request error")

		return nil, &UpstreamError{StatusCode: resp.StatusCode, Class: class, Message: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
	}

	root, err := gabs.ParseJSON(body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Class: ErrorClassDecode, Message: "invalid response body", Err: err}
	}

	// A 200 can still carry an in-band provider error.
	if msg := inBandError(root); msg != "" {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Class: ErrorClassClient, Message: msg}
	}

	return root, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	return classifyStatus(resp.StatusCode)
}

// SetHTTPClient sets a custom HTTP client (for testing).
// A client without a cookie jar takes over the current one.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client.Jar == nil {
		client.Jar = c.httpClient.Jar
	}
	c.httpClient = client
}

// errorRoots are the envelopes Yahoo reports errors under.
var errorRoots = []string{"finance", "quoteResponse", "optionChain"}

func inBandError(root *gabs.Container) string {
	for _, r := range errorRoots {
		if desc, ok := root.S(r, "error", "description").Data().(string); ok && desc != "" {
			return desc
		}
	}
	return ""
}

func errorMessage(body []byte, fallback string) string {
	root, err := gabs.ParseJSON(body)
	if err != nil {
		return fallback
	}
	if msg := inBandError(root); msg != "" {
		return msg
	}
	return fallback
}

func contracts(side *gabs.Container) []Contract {
	children := side.Children()
	out := make([]Contract, 0, len(children))
	for _, child := range children {
		rec, ok := child.Data().(map[string]any)
		if !ok {
			continue
		}
		symbol, _ := rec["contractSymbol"].(string)
		strike, _ := price.Number(rec, "strike")
		c := Contract{
			ContractSymbol: symbol,
			Strike:         strike,
			Raw:            Record(rec),
		}
		if last, ok := price.Number(rec, "lastPrice"); ok {
			c.LastPrice = &last
		}
		out = append(out, c)
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
