package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/showfinder-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained per-IP request rate on the query
	// routes when none is configured. Every /api/askgpt call costs an
	// embedding and a completion, so the limit guards upstream spend.
	defaultRateLimit = 10

	// defaultRateBurst is the per-IP burst when none is configured.
	defaultRateBurst = 20

	// limiterIdleTTL is how long an IP may stay quiet before its bucket is
	// dropped.
	limiterIdleTTL = 5 * time.Minute
)

// clientBucket is one IP's token bucket and the last time it was used.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token-bucket limit. Idle buckets are evicted
// every minute to bound memory.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
	log     *slog.Logger
	now     func() time.Time
}

// newRateLimiter constructs a rateLimiter and starts its eviction goroutine,
// which exits when the returned stop function is called. stop is idempotent.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log,
		now:     time.Now,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	var once sync.Once
	return rl, func() { once.Do(func() { close(stopCh) }) }
}

// allow reports whether ip may make a request now.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = rl.now()
	rl.mu.Unlock()

	return b.limiter.Allow()
}

// evictLoop runs evict once a minute until stopCh is closed.
func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets idle for longer than limiterIdleTTL and returns how
// many it removed.
func (rl *rateLimiter) evict() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-limiterIdleTTL)
	removed := 0
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
			removed++
		}
	}
	if removed > 0 {
		rl.log.Debug("rate limiter: evicted idle clients", slog.Int("evicted", removed))
	}
	return removed
}

// size returns the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects requests over the limit with 429 Too Many Requests and
// a Retry-After header.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted; the server binds to loopback by default.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
