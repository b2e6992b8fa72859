package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/yfi-proxy/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockYahoo) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.CookieURL = mock.CookieURL()
	cfg.UserAgent = "TestApp/1.0.0 (test@example.com)"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name: "empty base url",
			config: Config{
				UserAgent: "TestApp/1.0.0",
				Timeout:   time.Second,
			},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name: "unsupported scheme",
			config: Config{
				BaseURL:   "ftp://example.com",
				UserAgent: "TestApp/1.0.0",
				Timeout:   time.Second,
			},
			expectError: true,
			errorMsg:    `base url must be http or https (got "ftp://example.com")`,
		},
		{
			name: "unsupported cookie url",
			config: Config{
				BaseURL:   DefaultBaseURL,
				CookieURL: "fc.yahoo.com",
				UserAgent: "TestApp/1.0.0",
				Timeout:   time.Second,
			},
			expectError: true,
			errorMsg:    `cookie url must be http or https (got "fc.yahoo.com")`,
		},
		{
			name: "empty user agent",
			config: Config{
				BaseURL: DefaultBaseURL,
				Timeout: time.Second,
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "zero timeout",
			config: Config{
				BaseURL:   DefaultBaseURL,
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    "timeout must be > 0 (got 0s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.CookieURL != DefaultCookieURL {
		t.Errorf("CookieURL = %q, want %q", cfg.CookieURL, DefaultCookieURL)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
}

func TestClassifyError(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{
			name:     "network error",
			err:      io.EOF,
			expected: ErrorClassNetwork,
		},
		{
			name:       "client error 404",
			statusCode: 404,
			expected:   ErrorClassClient,
		},
		{
			name:       "client error 400",
			statusCode: 400,
			expected:   ErrorClassClient,
		},
		{
			name:       "client error 422",
			statusCode: 422,
			expected:   ErrorClassClient,
		},
		{
			name:       "throttled 429",
			statusCode: 429,
			expected:   ErrorClassThrottle,
		},
		{
			name:       "unauthorized 401",
			statusCode: 401,
			expected:   ErrorClassAuth,
		},
		{
			name:       "forbidden 403",
			statusCode: 403,
			expected:   ErrorClassAuth,
		},
		{
			name:       "unexpected 405",
			statusCode: 405,
			expected:   ErrorClassServer,
		},
		{
			name:       "server error 500",
			statusCode: 500,
			expected:   ErrorClassServer,
		},
		{
			name:       "server error 503",
			statusCode: 503,
			expected:   ErrorClassServer,
		},
		{
			name:       "success 200",
			statusCode: 200,
			expected:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.statusCode > 0 {
				resp = &http.Response{
					StatusCode: tt.statusCode,
				}
			}

			result := client.classifyError(resp, tt.err)
			if result != tt.expected {
				t.Errorf("classifyError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestQuoteInfo(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()

	mock.SetQuote("AAPL", map[string]any{"regularMarketPrice": 187.44, "currency": "USD"})
	mock.SetQuote("MSFT", map[string]any{"regularMarketPrice": 402.1})

	client := newTestClient(t, mock)

	records, err := client.QuoteInfo(context.Background(), []string{"aapl", "MSFT", "ZZZZ"})
	if err != nil {
		t.Fatalf("QuoteInfo() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if got := records["AAPL"]["regularMarketPrice"]; got != 187.44 {
		t.Errorf("AAPL regularMarketPrice = %v, want 187.44", got)
	}
	if got := records["AAPL"]["currency"]; got != "USD" {
		t.Errorf("AAPL currency = %v, want USD", got)
	}
	if _, ok := records["ZZZZ"]; ok {
		t.Error("unknown symbol should be absent")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
	}
}

func TestQuoteInfo_Empty(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()

	client := newTestClient(t, mock)

	records, err := client.QuoteInfo(context.Background(), nil)
	if err != nil {
		t.Fatalf("QuoteInfo() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount())
	}
}

func TestQuoteInfo_UserAgentSet(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()

	client := newTestClient(t, mock)
	if _, err := client.QuoteInfo(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("QuoteInfo() error = %v", err)
	}

	if got := mock.LastRequestHeader().Get("User-Agent"); got != "TestApp/1.0.0 (test@example.com)" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := mock.LastRequestHeader().Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
}

func TestQuoteInfo_Errors(t *testing.T) {
	tests := []struct {
		name       string
		resp       testutil.MockResponse
		wantClass  ErrorClass
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "server error",
			resp:       testutil.NewServerErrorResponse(),
			wantClass:  ErrorClassServer,
			wantStatus: 500,
			wantMsg:    "Internal server error",
		},
		{
			name:       "not found",
			resp:       testutil.NewNotFoundResponse("No data found"),
			wantClass:  ErrorClassClient,
			wantStatus: 404,
			wantMsg:    "No data found",
		},
		{
			name:       "rate limited",
			resp:       testutil.NewRateLimitedResponse(),
			wantClass:  ErrorClassThrottle,
			wantStatus: 429,
			wantMsg:    "Rate limited",
		},
		{
			name: "session rejected",
			resp: testutil.MockResponse{
				StatusCode: http.StatusUnauthorized,
				Body:       `{"finance":{"result":null,"error":{"code":"Unauthorized","description":"Invalid Crumb"}}}`,
			},
			wantClass:  ErrorClassAuth,
			wantStatus: 401,
			wantMsg:    "Invalid Crumb",
		},
		{
			name:       "malformed body",
			resp:       testutil.NewMalformedResponse(),
			wantClass:  ErrorClassDecode,
			wantStatus: 200,
			wantMsg:    "invalid response body",
		},
		{
			name: "error without description falls back to status",
			resp: testutil.MockResponse{
				StatusCode: http.StatusBadGateway,
				Body:       "bad gateway",
			},
			wantClass:  ErrorClassServer,
			wantStatus: 502,
			wantMsg:    "502 Bad Gateway",
		},
		{
			name: "in-band error on 200",
			resp: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"quoteResponse":{"result":null,"error":{"code":"argument-error","description":"Missing value for the \"symbols\" argument"}}}`,
			},
			wantClass:  ErrorClassClient,
			wantStatus: 200,
			wantMsg:    `Missing value for the "symbols" argument`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockYahoo()
			defer mock.Close()
			mock.SetResponse("/v7/finance/quote", tt.resp)

			client := newTestClient(t, mock)
			_, err := client.QuoteInfo(context.Background(), []string{"AAPL"})

			var upstreamErr *UpstreamError
			if !errors.As(err, &upstreamErr) {
				t.Fatalf("QuoteInfo() error = %v, want *UpstreamError", err)
			}
			if upstreamErr.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", upstreamErr.Class, tt.wantClass)
			}
			if upstreamErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", upstreamErr.StatusCode, tt.wantStatus)
			}
			if upstreamErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", upstreamErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestQuoteInfo_NetworkError(t *testing.T) {
	mock := testutil.NewMockYahoo()
	client := newTestClient(t, mock)
	mock.Close()

	_, err := client.QuoteInfo(context.Background(), []string{"AAPL"})

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("QuoteInfo() error = %v, want *UpstreamError", err)
	}
	if upstreamErr.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want %q", upstreamErr.Class, ErrorClassNetwork)
	}
}

func TestQuoteInfo_Timeout(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()
	mock.SetResponse("/v7/finance/quote", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"quoteResponse":{"result":[]}}`,
		Delay:      200 * time.Millisecond,
	})

	client := newTestClient(t, mock)
	client.SetHTTPClient(&http.Client{Timeout: 20 * time.Millisecond})

	_, err := client.QuoteInfo(context.Background(), []string{"AAPL"})

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) || upstreamErr.Class != ErrorClassNetwork {
		t.Errorf("QuoteInfo() error = %v, want network UpstreamError", err)
	}
}

func TestOptionChain(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()

	near := time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC)
	far := time.Date(2023, 7, 21, 0, 0, 0, 0, time.UTC)
	mock.SetOptionChain("AAPL", near,
		[]map[string]any{{"contractSymbol": "AAPL230616C00150000", "strike": 150.0, "lastPrice": 36.5}},
		[]map[string]any{{"contractSymbol": "AAPL230616P00150000", "strike": 150.0, "lastPrice": 0.01}},
	)
	mock.SetOptionChain("AAPL", far,
		[]map[string]any{{"contractSymbol": "AAPL230721C00150000", "strike": 150.0, "lastPrice": 38.05}},
		nil,
	)

	client := newTestClient(t, mock)

	t.Run("nearest expiration uses one request", func(t *testing.T) {
		mock.Reset()
		chain, err := client.OptionChain(context.Background(), "AAPL", near)
		if err != nil {
			t.Fatalf("OptionChain() error = %v", err)
		}
		if !chain.Expiration.Equal(near) {
			t.Errorf("Expiration = %v, want %v", chain.Expiration, near)
		}
		if chain.Underlying != "AAPL" {
			t.Errorf("Underlying = %q, want AAPL", chain.Underlying)
		}
		c, ok := chain.Find("AAPL230616C00150000", true)
		if !ok || c.LastPrice == nil || *c.LastPrice != 36.5 || c.Strike != 150 {
			t.Errorf("Find(call) = %+v, %v", c, ok)
		}
		p, ok := chain.Find("AAPL230616P00150000", false)
		if !ok || p.LastPrice == nil || *p.LastPrice != 0.01 {
			t.Errorf("Find(put) = %+v, %v", p, ok)
		}
		if _, ok := chain.Find("AAPL230616P00150000", true); ok {
			t.Error("put contract found on call side")
		}
		if mock.RequestCount() != 1 {
			t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
		}
	})

	t.Run("later expiration fetches by date", func(t *testing.T) {
		mock.Reset()
		chain, err := client.OptionChain(context.Background(), "AAPL", far)
		if err != nil {
			t.Fatalf("OptionChain() error = %v", err)
		}
		if _, ok := chain.Find("AAPL230721C00150000", true); !ok {
			t.Error("contract for later expiration not found")
		}
		if len(chain.Puts) != 0 {
			t.Errorf("len(Puts) = %d, want 0", len(chain.Puts))
		}
		if mock.RequestCount() != 2 {
			t.Errorf("RequestCount = %d, want 2", mock.RequestCount())
		}
	})

	t.Run("unknown expiration", func(t *testing.T) {
		_, err := client.OptionChain(context.Background(), "AAPL", time.Date(2023, 6, 17, 0, 0, 0, 0, time.UTC))

		upstreamErr, ok := IsRejection(err)
		if !ok {
			t.Fatalf("OptionChain() error = %v, want rejection", err)
		}
		want := "Expiration `2023-06-17` cannot be found. Available expirations are: [2023-06-16, 2023-07-21]"
		if upstreamErr.Message != want {
			t.Errorf("Message = %q, want %q", upstreamErr.Message, want)
		}
	})

	t.Run("unknown underlying", func(t *testing.T) {
		_, err := client.OptionChain(context.Background(), "ZZZZ", near)

		upstreamErr, ok := IsRejection(err)
		if !ok {
			t.Fatalf("OptionChain() error = %v, want rejection", err)
		}
		if !strings.HasSuffix(upstreamErr.Message, "Available expirations are: []") {
			t.Errorf("Message = %q", upstreamErr.Message)
		}
	})
}

func TestOptionChain_ServerError(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()
	mock.SetResponse("/v7/finance/options/AAPL", testutil.NewServerErrorResponse())

	client := newTestClient(t, mock)
	_, err := client.OptionChain(context.Background(), "AAPL", time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC))

	if _, ok := IsRejection(err); ok {
		t.Error("server error classified as rejection")
	}
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) || upstreamErr.Class != ErrorClassServer {
		t.Errorf("OptionChain() error = %v, want server UpstreamError", err)
	}
}

func TestOptionChain_MissingLastPrice(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()

	expiration := time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC)
	mock.SetOptionChain("AAPL", expiration,
		[]map[string]any{{"contractSymbol": "AAPL230616C00300000", "strike": 300.0}},
		nil,
	)

	client := newTestClient(t, mock)
	chain, err := client.OptionChain(context.Background(), "AAPL", expiration)
	if err != nil {
		t.Fatalf("OptionChain() error = %v", err)
	}

	c, ok := chain.Find("AAPL230616C00300000", true)
	if !ok {
		t.Fatal("contract not found")
	}
	if c.LastPrice != nil {
		t.Errorf("LastPrice = %v, want nil", *c.LastPrice)
	}
}

func TestSession_ReusedAcrossRequests(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()
	mock.SetQuote("AAPL", map[string]any{"regularMarketPrice": 187.44})

	client := newTestClient(t, mock)

	for i := 0; i < 3; i++ {
		if _, err := client.QuoteInfo(context.Background(), []string{"AAPL"}); err != nil {
			t.Fatalf("QuoteInfo() error = %v", err)
		}
	}

	if got := mock.SessionCount(); got != 1 {
		t.Errorf("SessionCount = %d, want 1", got)
	}
	if got := mock.RequestCount(); got != 3 {
		t.Errorf("RequestCount = %d, want 3", got)
	}
}

func TestSession_ExpiredCrumb(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()
	mock.SetQuote("AAPL", map[string]any{"regularMarketPrice": 187.44})

	client := newTestClient(t, mock)
	if _, err := client.QuoteInfo(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("QuoteInfo() error = %v", err)
	}

	mock.ExpireSession()

	// The stale crumb is refused; the failure is not a parameter rejection.
	_, err := client.QuoteInfo(context.Background(), []string{"AAPL"})
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) || upstreamErr.Class != ErrorClassAuth {
		t.Fatalf("QuoteInfo() error = %v, want auth UpstreamError", err)
	}
	if _, ok := IsRejection(err); ok {
		t.Error("session failure classified as rejection")
	}

	// The next request starts a new session.
	records, err := client.QuoteInfo(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("QuoteInfo() after new session error = %v", err)
	}
	if _, ok := records["AAPL"]; !ok {
		t.Error("AAPL missing after new session")
	}
	if got := mock.SessionCount(); got != 2 {
		t.Errorf("SessionCount = %d, want 2", got)
	}
}

func TestSession_MissingCookie(t *testing.T) {
	mock := testutil.NewMockYahoo()
	defer mock.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.CookieURL = ""
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.QuoteInfo(context.Background(), []string{"AAPL"})

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) || upstreamErr.Class != ErrorClassAuth {
		t.Fatalf("QuoteInfo() error = %v, want auth UpstreamError", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount())
	}
}
