package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter allows a fixed number of requests per client in each window
type Limiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

type visitor struct {
	tokens     int
	lastRefill time.Time
}

// New creates a limiter. A rate below 1 disables limiting.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

// Enabled reports whether the limiter rejects anything at all
func (l *Limiter) Enabled() bool {
	return l != nil && l.rate > 0
}

// Allow spends one token for key. When the bucket is empty it returns false
// and how long until the next refill.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok || now.Sub(v.lastRefill) >= l.window {
		v = &visitor{tokens: l.rate, lastRefill: now}
		l.visitors[key] = v
	}

	if v.tokens > 0 {
		v.tokens--
		return true, 0
	}
	return false, v.lastRefill.Add(l.window).Sub(now)
}

// Run drops idle visitors every interval until ctx is done
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if !l.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, v := range l.visitors {
		if now.Sub(v.lastRefill) > l.window*2 {
			delete(l.visitors, key)
		}
	}
}

// Len returns the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// ClientIP extracts the client address from the request. The first
// X-Forwarded-For hop wins when the server sits behind a proxy.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
