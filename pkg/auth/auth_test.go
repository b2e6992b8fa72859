package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "abc", want: []string{"abc"}},
		{name: "multiple", raw: "abc:def:ghi", want: []string{"abc", "def", "ghi"}},
		{name: "empty segments dropped", raw: ":abc::def:", want: []string{"abc", "def"}},
		{name: "duplicates collapse", raw: "abc:abc", want: []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := ParseKeys(tt.raw)
			if len(keys) != len(tt.want) {
				t.Fatalf("len(ParseKeys(%q)) = %d, want %d", tt.raw, len(keys), len(tt.want))
			}
			for _, k := range tt.want {
				if !keys.Contains(k) {
					t.Errorf("ParseKeys(%q) missing %q", tt.raw, k)
				}
			}
		})
	}
}

func TestLoadKeys(t *testing.T) {
	t.Setenv("YFI_TEST_KEYS", "one:two")

	keys := LoadKeys("YFI_TEST_KEYS")
	if !keys.Contains("one") || !keys.Contains("two") {
		t.Errorf("LoadKeys() = %v, want one and two", keys)
	}
}

func TestKeySet_ContainsEmptyToken(t *testing.T) {
	keys := ParseKeys("::")
	if keys.Contains("") {
		t.Error("Contains(\"\") = true, want false")
	}
}

func TestMiddleware(t *testing.T) {
	keys := ParseKeys("secret:other")

	var called int
	handler := Middleware(keys, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCalled bool
	}{
		{name: "valid token", target: "/quote/AAPL?token=secret", wantStatus: http.StatusOK, wantCalled: true},
		{name: "second valid token", target: "/quote/AAPL?token=other", wantStatus: http.StatusOK, wantCalled: true},
		{name: "wrong token", target: "/quote/AAPL?token=nope", wantStatus: http.StatusUnauthorized},
		{name: "missing token", target: "/quote/AAPL", wantStatus: http.StatusUnauthorized},
		{name: "empty token", target: "/quote/AAPL?token=", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = 0
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if (called == 1) != tt.wantCalled {
				t.Errorf("handler called %d times, wantCalled %v", called, tt.wantCalled)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != `{"detail":"Invalid API Key"}` {
					t.Errorf("body = %s", body)
				}
			}
		})
	}
}
