// Package testutil provides testing utilities for the Yahoo Finance client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	quotePath   = "/v7/finance/quote"
	optionsPath = "/v7/finance/options/"

	// CookiePath sets the session cookie, like fc.yahoo.com.
	CookiePath = "/session"

	// CrumbPath returns the crumb for a request carrying the session cookie.
	CrumbPath = "/v1/test/getcrumb"

	// SessionCookie is the name of the session cookie.
	SessionCookie = "A3"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// chainSet holds the option chains of one underlying by expiration.
type chainSet struct {
	underlying string
	byDate     map[int64]mockChain
}

type mockChain struct {
	calls []map[string]any
	puts  []map[string]any
}

// MockYahoo is a configurable mock Yahoo Finance server for testing.
// Quotes and option chains are served from in-memory fixtures. Like the real
// service, the quote and option endpoints answer 401 unless the request
// carries the session cookie and the current crumb.
type MockYahoo struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	quotes   map[string]map[string]any
	chains   map[string]*chainSet
	crumbGen int

	// Tracking counts quote and option requests only.
	requestCount      int
	sessionCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header
}

// NewMockYahoo creates a new mock Yahoo Finance server.
func NewMockYahoo() *MockYahoo {
	mock := &MockYahoo{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		quotes:     make(map[string]map[string]any),
		chains:     make(map[string]*chainSet),
		pathCounts: make(map[string]int),
		crumbGen:   1,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case CookiePath:
			mock.cookieHandler(w, r)
			return
		case CrumbPath:
			mock.crumbHandler(w, r)
			return
		}

		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		if !mock.inSession(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"finance": map[string]any{
					"result": nil,
					"error":  map[string]any{"code": "Unauthorized", "description": "Invalid Crumb"},
				},
			})
			return
		}

		switch {
		case r.URL.Path == quotePath:
			mock.quoteHandler(w, r)
		case strings.HasPrefix(r.URL.Path, optionsPath):
			mock.optionsHandler(w, r)
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{
				"finance": map[string]any{
					"result": nil,
					"error":  map[string]any{"code": "Not Found", "description": "HTTP 404 Not Found"},
				},
			})
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockYahoo) URL() string {
	return m.server.URL
}

// CookieURL returns the URL that sets the session cookie.
func (m *MockYahoo) CookieURL() string {
	return m.server.URL + CookiePath
}

// ExpireSession rotates the crumb; requests with the previous one get 401.
func (m *MockYahoo) ExpireSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crumbGen++
}

// SessionCount returns the number of crumbs handed out.
func (m *MockYahoo) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionCount
}

// Close shuts down the mock server.
func (m *MockYahoo) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockYahoo) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.sessionCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockYahoo) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ClearHandler removes the custom handler for path, restoring the fixtures.
func (m *MockYahoo) ClearHandler(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, path)
}

// SetResponse configures a simple response for a path.
func (m *MockYahoo) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	})
}

// SetQuote registers the quote record returned for symbol.
// The record's "symbol" field is filled in when missing.
func (m *MockYahoo) SetQuote(symbol string, record map[string]any) {
	rec := make(map[string]any, len(record)+1)
	for k, v := range record {
		rec[k] = v
	}
	if _, ok := rec["symbol"]; !ok {
		rec["symbol"] = symbol
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[strings.ToUpper(symbol)] = rec
}

// SetOptionChain registers the calls and puts of underlying for the
// expiration date.
func (m *MockYahoo) SetOptionChain(underlying string, expiration time.Time, calls, puts []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToUpper(underlying)
	set, ok := m.chains[key]
	if !ok {
		set = &chainSet{underlying: key, byDate: make(map[int64]mockChain)}
		m.chains[key] = set
	}
	date := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, time.UTC).Unix()
	set.byDate[date] = mockChain{calls: calls, puts: puts}
}

// RequestCount returns the number of requests made to the server.
func (m *MockYahoo) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockYahoo) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// PathCount returns the number of requests made to path.
func (m *MockYahoo) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

func (m *MockYahoo) currentCrumb() string {
	return fmt.Sprintf("mock-crumb/%d", m.crumbGen)
}

func (m *MockYahoo) inSession(r *http.Request) bool {
	if _, err := r.Cookie(SessionCookie); err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return r.URL.Query().Get("crumb") == m.currentCrumb()
}

// cookieHandler sets the session cookie and, like fc.yahoo.com, answers 404.
func (m *MockYahoo) cookieHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "mock-session", Path: "/"})
	w.WriteHeader(http.StatusNotFound)
}

func (m *MockYahoo) crumbHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(SessionCookie); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	m.sessionCount++
	crumb := m.currentCrumb()
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain;charset=utf-8")
	_, _ = w.Write([]byte(crumb))
}

func (m *MockYahoo) quoteHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	result := make([]map[string]any, 0)
	for _, symbol := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if rec, ok := m.quotes[strings.ToUpper(symbol)]; ok {
			result = append(result, rec)
		}
	}
	m.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"quoteResponse": map[string]any{"result": result, "error": nil},
	})
}

func (m *MockYahoo) optionsHandler(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimPrefix(r.URL.Path, optionsPath))

	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.chains[symbol]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"optionChain": map[string]any{"result": []any{}, "error": nil},
		})
		return
	}

	dates := make([]int64, 0, len(set.byDate))
	for d := range set.byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	// Without a date the nearest expiration is served.
	date := dates[0]
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"finance": map[string]any{
					"result": nil,
					"error":  map[string]any{"code": "Bad Request", "description": "Invalid date"},
				},
			})
			return
		}
		date = parsed
	}

	options := []any{}
	if chain, ok := set.byDate[date]; ok {
		options = append(options, map[string]any{
			"expirationDate": date,
			"calls":          nonNil(chain.calls),
			"puts":           nonNil(chain.puts),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"optionChain": map[string]any{
			"result": []any{map[string]any{
				"underlyingSymbol": set.underlying,
				"expirationDates":  dates,
				"options":          options,
			}},
			"error": nil,
		},
	})
}

func nonNil(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"finance":{"result":null,"error":{"code":"Internal Server Error","description":"Internal server error"}}}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 response carrying a provider error description.
func NewNotFoundResponse(description string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"finance":{"result":null,"error":{"code":"Not Found","description":"` + description + `"}}}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// NewRateLimitedResponse creates a 429 Too Many Requests response.
func NewRateLimitedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"finance":{"result":null,"error":{"code":"Too Many Requests","description":"Rate limited"}}}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>Will be right back</html>`,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}
