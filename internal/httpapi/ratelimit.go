package httpapi

import (
	"bytes"
	"encoding/json"
	"expvar"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

var rateLimited = expvar.NewInt("rate_limited_total")

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter applies two token buckets: one keyed on client IP and one
// keyed on business ID, so a single busy business cannot starve others.
type RateLimiter struct {
	mu         sync.Mutex
	ipBuckets  map[string]*bucket
	bizBuckets map[string]*bucket

	ipRate   float64
	ipBurst  float64
	bizRate  float64
	bizBurst float64

	now func() time.Time
}

func NewRateLimiter(perMinute, burst, businessPerMinute, businessBurst int) *RateLimiter {
	return &RateLimiter{
		ipBuckets:  make(map[string]*bucket),
		bizBuckets: make(map[string]*bucket),
		ipRate:     float64(perMinute) / 60.0,
		ipBurst:    float64(burst),
		bizRate:    float64(businessPerMinute) / 60.0,
		bizBurst:   float64(businessBurst),
		now:        time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(l.ipBuckets, ip, l.ipRate, l.ipBurst) {
			rateLimited.Add(1)
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		if businessID := extractBusinessID(r); businessID != "" {
			if !l.allow(l.bizBuckets, businessID, l.bizRate, l.bizBurst) {
				rateLimited.Add(1)
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests for business")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(buckets map[string]*bucket, key string, rate, burst float64) bool {
	if key == "" || rate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := buckets[key]
	if !ok {
		b = &bucket{tokens: burst, lastSeen: now}
		buckets[key] = b
	}

	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens += elapsed * rate
	if b.tokens > burst {
		b.tokens = burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets idle longer than maxIdle. Call periodically.
func (l *RateLimiter) Prune(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxIdle)
	for key, b := range l.ipBuckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.ipBuckets, key)
		}
	}
	for key, b := range l.bizBuckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.bizBuckets, key)
		}
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func extractBusinessID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Business-ID")); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("business_id")); id != "" {
		return id
	}
	if r.Body == nil || r.Method != http.MethodPost {
		return ""
	}
	body, err := readBody(r)
	if err != nil {
		return ""
	}
	var payload struct {
		BusinessID string `json:"business_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.BusinessID)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
