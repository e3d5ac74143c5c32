package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newLimitedHandler(limiter *RateLimiter) http.Handler {
	return limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimiterPerIP(t *testing.T) {
	limiter := NewRateLimiter(60, 3, 0, 0)
	frozen := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return frozen }
	handler := newLimitedHandler(limiter)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	// A different client still has a full bucket.
	other := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	other.RemoteAddr = "10.0.0.2:4000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimiterRefills(t *testing.T) {
	limiter := NewRateLimiter(60, 1, 0, 0)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	handler := newLimitedHandler(limiter)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}

	now = now.Add(2 * time.Second)
	if code := send(); code != http.StatusOK {
		t.Fatalf("post-refill status = %d, want 200", code)
	}
}

func TestRateLimiterPerBusiness(t *testing.T) {
	limiter := NewRateLimiter(0, 0, 60, 2)
	frozen := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return frozen }
	handler := newLimitedHandler(limiter)

	send := func(ip, businessID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
		req.RemoteAddr = ip + ":4000"
		req.Header.Set("X-Business-ID", businessID)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1", "biz-1"); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if code := send("10.0.0.2", "biz-1"); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	// Third request for the same business trips the bucket even from a new IP.
	if code := send("10.0.0.3", "biz-1"); code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", code)
	}
	if code := send("10.0.0.4", "biz-2"); code != http.StatusOK {
		t.Fatalf("other business status = %d, want 200", code)
	}
}

func TestExtractBusinessID(t *testing.T) {
	t.Run("header wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/queue?business_id=from-query", nil)
		req.Header.Set("X-Business-ID", "from-header")
		if got := extractBusinessID(req); got != "from-header" {
			t.Fatalf("business id = %s, want from-header", got)
		}
	})

	t.Run("query fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/queue?business_id=from-query", nil)
		if got := extractBusinessID(req); got != "from-query" {
			t.Fatalf("business id = %s, want from-query", got)
		}
	})

	t.Run("post body fallback restores body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tickets", strings.NewReader(`{"business_id":"from-body"}`))
		if got := extractBusinessID(req); got != "from-body" {
			t.Fatalf("business id = %s, want from-body", got)
		}
		// The body must still be readable by the real handler afterwards.
		second, err := readBody(req)
		if err != nil {
			t.Fatalf("re-read body: %v", err)
		}
		if !strings.Contains(string(second), "from-body") {
			t.Fatalf("body not restored: %s", second)
		}
	})
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{"remote addr", "10.0.0.1:4000", "", "10.0.0.1"},
		{"forwarded single", "10.0.0.1:4000", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:4000", "203.0.113.7, 10.0.0.9", "203.0.113.7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("clientIP = %s, want %s", got, tc.want)
			}
		})
	}
}
