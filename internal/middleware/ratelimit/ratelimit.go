// Package ratelimit throttles mutating requests per client address.
package ratelimit

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window = time.Minute
	// idle clients are forgotten after this long
	staleAfter = 10 * time.Minute
)

// Limiter admits at most RequestsPerMinute requests per client in each
// fixed one-minute window. The window starts at the client's first request.
type Limiter struct {
	limit           int
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	clients map[string]*bucket

	allowed  atomic.Int64
	rejected atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts the limiter and its cleanup goroutine. Call Stop to
// release it. Zero config values take the defaults.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		limit:           config.RequestsPerMinute,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
		clients:         make(map[string]*bucket),
		stop:            make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow records one request from client. When the request is over the limit
// it also returns how long until the client's window reopens.
func (rl *Limiter) Allow(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[client]
	if !ok || now.Sub(b.start) >= window {
		b = &bucket{start: now}
		rl.clients[client] = b
	}
	b.lastSeen = now
	b.count++

	if b.count > rl.limit {
		rl.rejected.Add(1)
		return false, b.start.Add(window).Sub(now)
	}
	rl.allowed.Add(1)
	return true, 0
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup drops clients idle for longer than staleAfter and reports how many.
func (rl *Limiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-staleAfter)
	removed := 0
	for client, b := range rl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(rl.clients, client)
			removed++
		}
	}
	return removed
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	Allowed     int64
	TotalHits   int64 // rejected requests
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		Allowed:     rl.allowed.Load(),
		TotalHits:   rl.rejected.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware limits requests whose method is listed (every request when no
// methods are given). Rejected requests carry Retry-After in whole seconds
// before onLimit, or a plain 429, writes the response.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request), methods ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(methods) > 0 && !slices.Contains(methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := rl.Allow(extractIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
