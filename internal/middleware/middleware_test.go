package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

func ownerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(domain.OwnerFrom(r.Context())))
	})
}

func TestClientID(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", domain.DefaultOwner},
		{"  tab-42 ", "tab-42"},
		{"tg:100", domain.DefaultOwner},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set(ClientIDHeader, tt.header)
		}
		rec := httptest.NewRecorder()
		ClientID(ownerEcho()).ServeHTTP(rec, req)
		if got := rec.Body.String(); got != tt.want {
			t.Errorf("header %q: owner = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("preflight = %d %q", rec.Code, rec.Body.String())
	}
	if called {
		t.Errorf("preflight reached the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Error("third request in the window should be limited")
	}
	if !l.Allow("b") {
		t.Error("keys must be independent")
	}

	now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Error("new window should reset the count")
	}
	now = now.Add(2 * time.Minute)
	if n := l.Cleanup(); n != 2 {
		t.Errorf("Cleanup removed %d, want 2", n)
	}

	if !NewLimiter(0, time.Minute).Allow("x") {
		t.Error("zero limit disables limiting")
	}
}

func TestHTTPRateLimit(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	h := Chain(ownerEcho(), ClientID, HTTPRateLimit(l))

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(ClientIDHeader, "c1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("/chat"); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := do("/chat")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != false || body["errorCode"] != "RATE_LIMITED" {
		t.Errorf("body = %v", body)
	}
	if rec := do("/health"); rec.Code != http.StatusOK {
		t.Errorf("health should bypass the limiter, got %d", rec.Code)
	}
}

func TestHTTPRecover(t *testing.T) {
	h := HTTPLogging(HTTPRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Internal server error" {
		t.Errorf("body = %v", body)
	}
}
