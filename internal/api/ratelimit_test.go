package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestTokenBucket_Allow(t *testing.T) {
	bucket := newTokenBucket(5, 1)

	for i := 0; i < 5; i++ {
		if !bucket.allow() {
			t.Errorf("request %d should be allowed (burst)", i+1)
		}
	}
	if bucket.allow() {
		t.Error("6th request should be denied")
	}

	// Pretend a second and a bit has passed.
	bucket.mu.Lock()
	bucket.lastRefillTime = bucket.lastRefillTime.Add(-1100 * time.Millisecond)
	bucket.mu.Unlock()

	if !bucket.allow() {
		t.Error("request after refill should be allowed")
	}
	if bucket.allow() {
		t.Error("request should be denied after using refilled token")
	}
}

func TestTokenBucket_Remaining(t *testing.T) {
	bucket := newTokenBucket(10, 1)

	if got := bucket.remaining(); got != 10 {
		t.Errorf("remaining = %d, want 10", got)
	}
	for i := 0; i < 3; i++ {
		bucket.allow()
	}
	if got := bucket.remaining(); got != 7 {
		t.Errorf("remaining = %d, want 7", got)
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	bucket := newTokenBucket(5, 1)

	if reset := bucket.reset(); time.Until(reset) > time.Second {
		t.Errorf("full bucket should reset now, got %v", reset)
	}

	for i := 0; i < 5; i++ {
		bucket.allow()
	}
	until := time.Until(bucket.reset())
	if until < 4*time.Second || until > 6*time.Second {
		t.Errorf("empty bucket resets in %v, want ~5s", until)
	}
}

func TestTokenBucket_Concurrent(t *testing.T) {
	bucket := newTokenBucket(100, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if bucket.allow() {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d requests, want exactly 100", allowed)
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 2})
	defer rl.Close()

	for i := 0; i < 2; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Fatalf("request %d from first IP denied", i+1)
		}
	}
	if rl.Allow("192.168.1.1") {
		t.Error("third request from first IP should be denied")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("second IP should have its own bucket")
	}
	if got := rl.Remaining("192.168.1.2"); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}
}

func TestRateLimiter_DefaultBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60})
	defer rl.Close()

	if got := rl.Remaining("10.0.0.1"); got != defaultBurst {
		t.Errorf("Remaining = %d, want default burst %d", got, defaultBurst)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 5})
	defer rl.Close()
	rl.cleanupTTL = time.Minute

	for i := 0; i < 5; i++ {
		rl.Allow(fmt.Sprintf("192.168.1.%d", i))
	}

	if n := rl.sweep(time.Now()); n != 0 {
		t.Errorf("sweep removed %d fresh buckets", n)
	}
	if n := rl.sweep(time.Now().Add(2 * time.Minute)); n != 5 {
		t.Errorf("sweep removed %d idle buckets, want 5", n)
	}

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if len(rl.buckets) != 0 {
		t.Errorf("%d buckets left after sweep", len(rl.buckets))
	}
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60})
	rl.Close()
	rl.Close()
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 3})
	defer rl.Close()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/verse", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
			t.Errorf("X-RateLimit-Limit = %q", got)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(2-i) {
			t.Errorf("request %d: X-RateLimit-Remaining = %q, want %d", i+1, got, 2-i)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/verse", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ErrorKind != "RateLimitExceeded" {
		t.Errorf("error_kind = %q", body.ErrorKind)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name         string
		remoteAddr   string
		forwardedFor string
		realIP       string
		expectedIP   string
	}{
		{name: "RemoteAddr only", remoteAddr: "192.168.1.1:12345", expectedIP: "192.168.1.1"},
		{name: "X-Forwarded-For", remoteAddr: "192.168.1.1:12345", forwardedFor: "203.0.113.1", expectedIP: "203.0.113.1"},
		{name: "X-Real-IP", remoteAddr: "192.168.1.1:12345", realIP: "203.0.113.2", expectedIP: "203.0.113.2"},
		{
			name:         "X-Forwarded-For takes precedence",
			remoteAddr:   "192.168.1.1:12345",
			forwardedFor: "203.0.113.1",
			realIP:       "203.0.113.2",
			expectedIP:   "203.0.113.1",
		},
		{
			name:         "leftmost of several forwarded addresses",
			remoteAddr:   "192.168.1.1:12345",
			forwardedFor: "  203.0.113.5  ,  10.0.0.2  ",
			expectedIP:   "203.0.113.5",
		},
		{
			name:         "invalid X-Forwarded-For falls back",
			remoteAddr:   "192.168.1.1:12345",
			forwardedFor: "'; DROP TABLE verses; --",
			expectedIP:   "192.168.1.1",
		},
		{name: "invalid X-Real-IP falls back", remoteAddr: "192.168.1.1:12345", realIP: "malicious", expectedIP: "192.168.1.1"},
		{name: "IPv6", remoteAddr: "[2001:db8::1]:12345", forwardedFor: "2001:db8::2", expectedIP: "2001:db8::2"},
		{name: "RemoteAddr without port", remoteAddr: "10.1.2.3", expectedIP: "10.1.2.3"},
		{name: "garbage RemoteAddr", remoteAddr: "pipe", expectedIP: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/verse", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.forwardedFor)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if ip := getClientIP(req); ip != tt.expectedIP {
				t.Errorf("getClientIP = %s, want %s", ip, tt.expectedIP)
			}
		})
	}
}
