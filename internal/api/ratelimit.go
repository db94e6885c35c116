package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// defaultBurst applies when RateLimiterConfig.BurstSize is zero.
const defaultBurst = 10

// tokenBucket implements a token bucket rate limiter. The WebSocket
// endpoint reuses it for per-connection message limits.
type tokenBucket struct {
	tokens         float64
	capacity       float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
	mu             sync.Mutex
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{
		tokens:         capacity,
		capacity:       capacity,
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

// refillLocked MUST be called with tb.mu held.
func (tb *tokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefillTime = now
}

// allow takes a token if one is available.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(time.Now())
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}

// remaining returns the number of whole tokens left.
func (tb *tokenBucket) remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := time.Since(tb.lastRefillTime).Seconds()
	return int(min(tb.capacity, tb.tokens+elapsed*tb.refillRate))
}

// reset returns the time when the bucket will be full again.
func (tb *tokenBucket) reset() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tokens := min(tb.capacity, tb.tokens+now.Sub(tb.lastRefillTime).Seconds()*tb.refillRate)
	if tokens >= tb.capacity || tb.refillRate <= 0 {
		return now
	}
	secondsUntilFull := (tb.capacity - tokens) / tb.refillRate
	return now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
}

func (tb *tokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefillTime
}

// RateLimiter manages per-IP rate limiting.
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	config     RateLimiterConfig
	mu         sync.RWMutex
	cleanupTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine;
// call Close to stop it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = defaultBurst
	}
	rl := &RateLimiter{
		buckets:    make(map[string]*tokenBucket),
		config:     config,
		cleanupTTL: 5 * time.Minute,
		stop:       make(chan struct{}),
	}
	go rl.cleanup(time.Minute)
	return rl
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) getBucket(ip string) *tokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[ip]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if bucket, exists := rl.buckets[ip]; exists {
		return bucket
	}

	refillRate := float64(rl.config.RequestsPerMinute) / 60.0
	bucket = newTokenBucket(float64(rl.config.BurstSize), refillRate)
	rl.buckets[ip] = bucket
	return bucket
}

func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(time.Now())
		}
	}
}

// sweep drops buckets idle for longer than cleanupTTL.
func (rl *RateLimiter) sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	for ip, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) > rl.cleanupTTL {
			delete(rl.buckets, ip)
			n++
		}
	}
	return n
}

// Allow checks if a request from the given IP should be allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.getBucket(ip).allow()
}

// Remaining returns the number of remaining requests for the given IP.
func (rl *RateLimiter) Remaining(ip string) int {
	return rl.getBucket(ip).remaining()
}

// Reset returns the reset time for the given IP.
func (rl *RateLimiter) Reset(ip string) time.Time {
	return rl.getBucket(ip).reset()
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket := rl.getBucket(getClientIP(r))
		allowed := bucket.allow()
		reset := bucket.reset()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(bucket.remaining()))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			respondError(w, http.StatusTooManyRequests, "RateLimitExceeded",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request.
// Header values are only trusted when they parse as an IP.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP, _, _ := strings.Cut(forwarded, ",")
		clientIP = strings.TrimSpace(clientIP)
		if isValidIP(clientIP) {
			return clientIP
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" && isValidIP(realIP) {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}
	return "unknown"
}

func isValidIP(ipStr string) bool {
	return net.ParseIP(ipStr) != nil
}
