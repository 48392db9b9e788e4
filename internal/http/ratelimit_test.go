package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimitConfig{Requests: 3, Window: 3 * time.Second})
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("alice") {
			t.Fatalf("Allow() request %d denied, want allowed", i+1)
		}
	}
	if l.Allow("alice") {
		t.Error("Allow() over burst allowed, want denied")
	}
	if !l.Allow("bob") {
		t.Error("Allow() for another client denied, want allowed")
	}

	// one token refills per second
	now = now.Add(time.Second)
	if !l.Allow("alice") {
		t.Error("Allow() after refill denied, want allowed")
	}
	if l.Allow("alice") {
		t.Error("Allow() second request after single refill allowed, want denied")
	}
}

func TestRateLimiter_WindowShorterThanRequestCount(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimitConfig{Requests: 10, Window: 5 * time.Nanosecond})
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		if !l.Allow("alice") {
			t.Fatalf("Allow() request %d denied, want allowed", i+1)
		}
	}
	if l.Allow("alice") {
		t.Error("Allow() over burst allowed, want denied")
	}
}

func TestRateLimiter_RemainingAndReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimitConfig{Requests: 10, Window: time.Minute})
	l.now = func() time.Time { return now }

	if got := l.Remaining("alice"); got != 10 {
		t.Errorf("Remaining() = %d, want 10", got)
	}
	for i := 0; i < 4; i++ {
		l.Allow("alice")
	}
	if got := l.Remaining("alice"); got != 6 {
		t.Errorf("Remaining() = %d, want 6", got)
	}

	l.Reset("alice")
	if got := l.Remaining("alice"); got != 10 {
		t.Errorf("Remaining() after Reset = %d, want 10", got)
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{})
	if l.cfg != DefaultRateLimit {
		t.Errorf("cfg = %+v, want %+v", l.cfg, DefaultRateLimit)
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimitConfig{Requests: 1, Window: time.Minute})
	l.now = func() time.Time { return now }

	l.Allow("idle")
	now = now.Add(2 * time.Minute)
	l.Allow("active")
	l.prune(now)

	if _, ok := l.clients["idle"]; ok {
		t.Error("prune() kept idle client")
	}
	if _, ok := l.clients["active"]; !ok {
		t.Error("prune() dropped active client")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Requests: 2, Window: time.Hour})
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
		if userID != "" {
			req.Header.Set(UserIDHeader, userID)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	if w := send("u1"); w.Code != http.StatusOK || w.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Errorf("first request: status %d remaining %q", w.Code, w.Header().Get("X-RateLimit-Remaining"))
	}
	if w := send("u1"); w.Code != http.StatusOK {
		t.Errorf("second request: status %d, want 200", w.Code)
	}
	w := send("u1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1800" {
		t.Errorf("Retry-After = %q, want 1800", w.Header().Get("Retry-After"))
	}

	// keyed by IP when no user header is sent
	if w := send(""); w.Code != http.StatusOK {
		t.Errorf("anonymous request: status %d, want 200", w.Code)
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		remoteAddr string
		want       string
	}{
		{name: "user header", userID: "alice", remoteAddr: "10.0.0.1:5000", want: "user:alice"},
		{name: "remote ip", remoteAddr: "10.0.0.1:5000", want: "ip:10.0.0.1"},
		{name: "ipv6", remoteAddr: "[::1]:5000", want: "ip:::1"},
		{name: "no port", remoteAddr: "10.0.0.2", want: "ip:10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.userID != "" {
				req.Header.Set(UserIDHeader, tt.userID)
			}
			if got := ClientKey(req); got != tt.want {
				t.Errorf("ClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
