package http

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hybrid-rag/internal/contextutil"
)

const (
	// UserIDHeader identifies the client for rate limiting. The remote IP is used when it is absent.
	UserIDHeader = "X-User-ID"

	maxTrackedClients = 10000
)

// RateLimitConfig holds per-client rate limiting configuration.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per Window, also used as the burst size.
	Requests int
	Window   time.Duration
}

// DefaultRateLimit allows 10 requests per minute per client.
var DefaultRateLimit = RateLimitConfig{Requests: 10, Window: time.Minute}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket limiter.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	cfg     RateLimitConfig
	now     func() time.Time
}

// NewRateLimiter creates a limiter. Non-positive settings fall back to DefaultRateLimit.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultRateLimit.Requests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimit.Window
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now and consumes a token if so.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return l.client(key, now).limiter.AllowN(now, 1)
}

// Remaining returns how many requests key could make immediately.
func (l *RateLimiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tokens := l.client(key, now).limiter.TokensAt(now)
	return int(math.Max(0, math.Floor(tokens)))
}

// Reset forgets key, restoring its full allowance.
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, key)
}

// client returns the limiter for key. Must be called with l.mu held.
func (l *RateLimiter) client(key string, now time.Time) *clientLimiter {
	c, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.prune(now)
		}
		// A zero interval would mean rate.Inf and disable limiting.
		every := max(l.cfg.Window/time.Duration(l.cfg.Requests), time.Nanosecond)
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(every), l.cfg.Requests)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c
}

// prune drops clients idle for a full window; their buckets are full again anyway.
func (l *RateLimiter) prune(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.cfg.Window {
			delete(l.clients, key)
		}
	}
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientKey(r)
		if !l.Allow(key) {
			ctx := r.Context()
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "rate limit exceeded", "client", key)

			retryAfter := int(math.Ceil((l.cfg.Window / time.Duration(l.cfg.Requests)).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded"})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(l.Remaining(key)))
		next.ServeHTTP(w, r)
	})
}

// ClientKey identifies the caller by X-User-ID, falling back to the remote IP.
func ClientKey(r *http.Request) string {
	if id := r.Header.Get(UserIDHeader); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
