package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/giygas/apples-stats/logging"
	"github.com/juju/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
)

const cleanupInterval = 30 * time.Minute

// RateLimiter manages per-client rate limiting
type RateLimiter struct {
	clients  map[string]*ratelimit.Bucket
	mu       sync.RWMutex
	rate     float64
	capacity int64
	buckets  prometheus.Gauge

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter giving each client rate tokens per
// second up to capacity, and starts its cleanup loop. buckets may be nil.
func NewRateLimiter(rate float64, capacity int64, buckets prometheus.Gauge) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*ratelimit.Bucket),
		rate:     rate,
		capacity: capacity,
		buckets:  buckets,
		stop:     make(chan struct{}),
	}
	rl.cleanup(cleanupInterval)
	return rl
}

func (rl *RateLimiter) getBucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[clientIP]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if bucket, exists = rl.clients[clientIP]; !exists {
			bucket = ratelimit.NewBucketWithRate(rl.rate, rl.capacity)
			rl.clients[clientIP] = bucket
			rl.setBucketsGauge()
		}
		rl.mu.Unlock()
	}

	return bucket
}

// setBucketsGauge must be called with mu held
func (rl *RateLimiter) setBucketsGauge() {
	if rl.buckets != nil {
		rl.buckets.Set(float64(len(rl.clients)))
	}
}

// cleanup removes clients whose bucket has refilled, until Stop is called
func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.sweep()
			case <-rl.stop:
				return
			}
		}
	}()
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, bucket := range rl.clients {
		if bucket.Available() == bucket.Capacity() {
			delete(rl.clients, ip)
		}
	}
	rl.setBucketsGauge()
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// retryAfter is the number of whole seconds until one token is back
func (rl *RateLimiter) retryAfter() int {
	return max(1, int(math.Ceil(1/rl.rate)))
}

// Middleware implements rate limiting using a token bucket per client IP.
// Each request costs one token.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	limit := strconv.FormatInt(rl.capacity, 10)
	rate := strconv.FormatFloat(rl.rate, 'f', -1, 64)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		bucket := rl.getBucket(ip)

		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Rate", rate)

		if bucket.TakeAvailable(1) < 1 {
			logging.Warn("Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr, which middleware.RealIP may
// already have replaced with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
