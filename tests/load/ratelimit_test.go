//go:build load

// Package load holds saturation tests for the HTTP rate limiter. They
// are tagged out of regular CI runs; invoke them with:
//
//	go test -tags load -count=1 -timeout 60s ./tests/load/
package load

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/CodeAtlas/internal/middleware"
)

func passthrough() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// fire sends one request from ip through the limited handler.
func fire(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/repositories", http.NoBody)
	req.RemoteAddr = ip + ":40212"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestSustainedFloodMostlyRejected hammers a rate=10 burst=10 limiter
// with 1000 near-instant requests from one IP. Only the initial burst
// plus a handful of refilled tokens should get through.
func TestSustainedFloodMostlyRejected(t *testing.T) {
	rl := middleware.NewRateLimiter(10, 10)
	handler := rl.Handler(passthrough())

	const workers = 8
	const perWorker = 125

	var ok, limited atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for range perWorker {
				switch fire(handler, "10.0.0.1").Code {
				case http.StatusOK:
					ok.Add(1)
				case http.StatusTooManyRequests:
					limited.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	total := ok.Load() + limited.Load()
	rejectedPct := float64(limited.Load()) / float64(total) * 100
	t.Logf("total=%d ok=%d limited=%d (%.1f%% rejected)", total, ok.Load(), limited.Load(), rejectedPct)

	if limited.Load() == 0 {
		t.Error("expected the flood to trip the limiter")
	}
	if rejectedPct < 80 {
		t.Errorf("expected >80%% of the flood rejected, got %.1f%%", rejectedPct)
	}
}

// TestBurstFullyAbsorbed verifies that a full burst of concurrent
// requests all pass and the request after it is turned away.
func TestBurstFullyAbsorbed(t *testing.T) {
	const burst = 40
	rl := middleware.NewRateLimiter(1, burst)
	handler := rl.Handler(passthrough())

	var ok, limited atomic.Int64
	var wg sync.WaitGroup
	wg.Add(burst)

	for range burst {
		go func() {
			defer wg.Done()
			switch fire(handler, "10.0.0.1").Code {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusTooManyRequests:
				limited.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != burst {
		t.Errorf("expected all %d burst requests admitted, got ok=%d limited=%d",
			burst, ok.Load(), limited.Load())
	}
	if rec := fire(handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("request past the burst: expected 429, got %d", rec.Code)
	}
}

// TestClientsDoNotShareBuckets drains one client's bucket and checks a
// second client is untouched.
func TestClientsDoNotShareBuckets(t *testing.T) {
	const burst = 5
	rl := middleware.NewRateLimiter(5, burst)
	handler := rl.Handler(passthrough())

	drain := func(ip string, count int) (ok, limited int) {
		for range count {
			switch fire(handler, ip).Code {
			case http.StatusOK:
				ok++
			case http.StatusTooManyRequests:
				limited++
			}
		}
		return
	}

	ok1, lim1 := drain("10.0.0.1", burst+4)
	t.Logf("client 1: ok=%d limited=%d", ok1, lim1)
	if ok1 != burst || lim1 != 4 {
		t.Errorf("client 1: expected %d admitted and 4 limited, got %d/%d", burst, ok1, lim1)
	}

	ok2, lim2 := drain("10.0.0.2", burst)
	t.Logf("client 2: ok=%d limited=%d", ok2, lim2)
	if ok2 != burst || lim2 != 0 {
		t.Errorf("client 2: expected an untouched bucket, got ok=%d limited=%d", ok2, lim2)
	}
}

// TestManyClientsFirstRequestAdmitted sends one request each from 150
// distinct IPs concurrently; every first contact must pass and leave a
// tracked bucket behind.
func TestManyClientsFirstRequestAdmitted(t *testing.T) {
	const clients = 150
	rl := middleware.NewRateLimiter(1, 1)
	handler := rl.Handler(passthrough())

	var ok atomic.Int64
	var wg sync.WaitGroup
	wg.Add(clients)

	for i := range clients {
		go func(n int) {
			defer wg.Done()
			ip := fmt.Sprintf("172.16.%d.%d", n/256, n%256)
			if fire(handler, ip).Code == http.StatusOK {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if ok.Load() != clients {
		t.Errorf("expected all %d first requests admitted, got %d", clients, ok.Load())
	}
	if rl.Len() != clients {
		t.Errorf("expected %d tracked buckets, got %d", clients, rl.Len())
	}
}

// TestHeadersSurviveLoad checks the rate headers on both sides of the
// limit: admitted responses carry X-RateLimit-Remaining, rejected ones
// carry Retry-After.
func TestHeadersSurviveLoad(t *testing.T) {
	const burst = 5
	rl := middleware.NewRateLimiter(5, burst)
	handler := rl.Handler(passthrough())

	for i := range burst + 3 {
		rec := fire(handler, "10.0.0.1")
		switch {
		case i < burst:
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
			}
			if rec.Header().Get("X-RateLimit-Remaining") == "" {
				t.Errorf("request %d: missing X-RateLimit-Remaining", i+1)
			}
		default:
			if rec.Code != http.StatusTooManyRequests {
				t.Errorf("request %d: expected 429, got %d", i+1, rec.Code)
			}
			if rec.Header().Get("Retry-After") == "" {
				t.Errorf("request %d: missing Retry-After", i+1)
			}
		}
	}
}

// TestSweepEvictsIdleBuckets fills the limiter with 500 buckets and
// waits for the background sweep to clear them all.
func TestSweepEvictsIdleBuckets(t *testing.T) {
	const clients = 500
	rl := middleware.NewRateLimiter(10, 10)
	handler := rl.Handler(passthrough())

	for i := range clients {
		fire(handler, fmt.Sprintf("172.16.%d.%d", i/256, i%256))
	}
	if rl.Len() != clients {
		t.Fatalf("expected %d buckets before the sweep, got %d", clients, rl.Len())
	}

	time.Sleep(10 * time.Millisecond)
	stop := rl.StartCleanup(5*time.Millisecond, time.Millisecond)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for rl.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := rl.Len(); got != 0 {
		t.Errorf("expected the sweep to evict every bucket, %d remain", got)
	}
}
