package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	defer rl.Stop()
	handler := rl.Middleware(okHandler())

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/apples", nil)
		req.RemoteAddr = remoteAddr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", code)
	}
	// Same host on another port shares the bucket
	if code := send("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Errorf("Expected second request from the same host to be limited, got %d", code)
	}
	if code := send("10.0.0.2:5000"); code != http.StatusOK {
		t.Errorf("Expected another client to have its own bucket, got %d", code)
	}
}

func TestRateLimiterHeaders(t *testing.T) {
	rl := NewRateLimiter(0.25, 1, nil)
	defer rl.Stop()
	handler := rl.Middleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/apples", nil))

	if got := rr.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Errorf("Expected X-RateLimit-Limit 1, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Rate"); got != "0.25" {
		t.Errorf("Expected X-RateLimit-Rate 0.25, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("Expected X-RateLimit-Remaining 0, got %q", got)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/apples", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "4" {
		t.Errorf("Expected Retry-After 4 at a quarter token per second, got %q", got)
	}
}

func TestRateLimiterSweepRemovesIdleClients(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_buckets"})
	rl := NewRateLimiter(1, 5, gauge)
	defer rl.Stop()

	rl.getBucket("10.0.0.1")
	busy := rl.getBucket("10.0.0.2")
	busy.TakeAvailable(3)

	if got := testutil.ToFloat64(gauge); got != 2 {
		t.Fatalf("Expected 2 buckets, got %v", got)
	}

	rl.sweep()

	rl.mu.RLock()
	_, idleKept := rl.clients["10.0.0.1"]
	_, busyKept := rl.clients["10.0.0.2"]
	rl.mu.RUnlock()

	if idleKept {
		t.Error("Expected the full bucket to be removed")
	}
	if !busyKept {
		t.Error("Expected the partially drained bucket to be kept")
	}
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("Expected gauge to drop to 1, got %v", got)
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
