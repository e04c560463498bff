package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter throttles requests per client IP with a token bucket.
// Bulk scraping of the wiki API is the main abuse vector, so the
// limiter keys on the transport address rather than anything a client
// can choose.
type RateLimiter struct {
	mu         sync.Mutex
	perIP      map[string]*bucket
	rate       float64 // sustained tokens per second
	burst      float64 // bucket capacity
	maxTracked int     // bound on distinct IPs held in memory
}

// bucket tracks the token balance for one client IP.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

// refill credits tokens for the time elapsed since the last refill,
// capped at the bucket capacity.
func (b *bucket) refill(now time.Time, rate, burst float64) {
	b.tokens = math.Min(burst, b.tokens+now.Sub(b.lastRefill).Seconds()*rate)
	b.lastRefill = now
	b.lastSeen = now
}

// verdict is the outcome of a single admission check.
type verdict struct {
	allowed    bool
	remaining  int
	retryAfter float64   // seconds until the next token, when denied
	reset      time.Time // when the bucket is back at capacity
}

// NewRateLimiter creates a limiter with the given sustained rate
// (requests per second) and per-IP burst capacity.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		perIP:      make(map[string]*bucket),
		rate:       rate,
		burst:      float64(burst),
		maxTracked: 100_000,
	}
}

// Handler enforces the per-IP limit and reports rate headers on every
// response.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))

		if !v.allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(v.retryAfter))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token for ip, creating the bucket on first
// contact. New IPs are refused outright once maxTracked buckets exist,
// which keeps a source-address flood from exhausting memory.
func (rl *RateLimiter) take(ip string) verdict {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	b, ok := rl.perIP[ip]
	if !ok {
		if len(rl.perIP) >= rl.maxTracked {
			return verdict{retryAfter: 1 / rl.rate, reset: now.Add(time.Second)}
		}
		b = &bucket{tokens: rl.burst, lastRefill: now, lastSeen: now}
		rl.perIP[ip] = b
	} else {
		b.refill(now, rl.rate, rl.burst)
	}

	if b.tokens < 1 {
		return verdict{retryAfter: (1 - b.tokens) / rl.rate, reset: rl.resetAt(now, b)}
	}

	b.tokens--
	return verdict{allowed: true, remaining: int(b.tokens), reset: rl.resetAt(now, b)}
}

// resetAt estimates when the bucket returns to full capacity.
func (rl *RateLimiter) resetAt(now time.Time, b *bucket) time.Time {
	deficit := rl.burst - b.tokens
	if deficit <= 0 {
		return now
	}
	return now.Add(time.Duration(deficit / rl.rate * float64(time.Second)))
}

// StartCleanup evicts buckets idle for longer than maxIdle, checking
// every interval. The returned function stops the background sweep.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.sweep(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) sweep(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, b := range rl.perIP {
		if b.lastSeen.Before(cutoff) {
			delete(rl.perIP, ip)
		}
	}
}

// Len reports how many IPs currently hold a bucket.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.perIP)
}

// clientIP is the transport-level peer address. X-Forwarded-For and
// X-Real-Ip are ignored here: clients can set them to whatever dodges
// the limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
