package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(rate int, window time.Duration) (*Limiter, *time.Time) {
	clock := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	l := New(rate, window)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestAllowSpendsTokens(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	ok, _ := l.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok)

	ok, wait := l.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	// other clients have their own bucket
	ok, _ = l.Allow("5.6.7.8")
	assert.True(t, ok)

	*clock = clock.Add(40 * time.Second)
	ok, wait = l.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, wait)

	*clock = clock.Add(20 * time.Second)
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok)
}

func TestDisabledLimiter(t *testing.T) {
	l := New(0, time.Minute)
	assert.False(t, l.Enabled())
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("1.2.3.4")
		assert.True(t, ok)
	}

	var nilLimiter *Limiter
	ok, _ := nilLimiter.Allow("x")
	assert.True(t, ok)
}

func TestSweepDropsIdleVisitors(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	l.Allow("a")
	*clock = clock.Add(90 * time.Second)
	l.Allow("b")

	*clock = clock.Add(45 * time.Second)
	l.sweep()

	assert.Equal(t, 1, l.Len())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5123", "10.0.0.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "10.0.0.2:80", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:80", "198.51.100.4"},
		{"no port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/children", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
