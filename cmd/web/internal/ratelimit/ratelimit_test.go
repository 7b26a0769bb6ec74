package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/anyvid/cmd/web/handlers/common"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(limit int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := New(limit)
	l.now = clock.now
	l.lastCleanup = clock.t
	return l, clock
}

func TestAllow_SlidingWindow(t *testing.T) {
	l, clock := newTestLimiter(2)

	ok, remaining, _ := l.Allow("1.2.3.4")
	require.True(t, ok)
	require.Equal(t, 1, remaining)

	clock.advance(20 * time.Second)
	ok, remaining, _ = l.Allow("1.2.3.4")
	require.True(t, ok)
	require.Equal(t, 0, remaining)

	clock.advance(10 * time.Second)
	ok, _, retryAfter := l.Allow("1.2.3.4")
	require.False(t, ok)
	require.Equal(t, 31*time.Second, retryAfter)

	// Other clients have their own window.
	ok, _, _ = l.Allow("5.6.7.8")
	require.True(t, ok)

	// The first request leaves the window.
	clock.advance(31 * time.Second)
	ok, remaining, _ = l.Allow("1.2.3.4")
	require.True(t, ok)
	require.Equal(t, 0, remaining)
}

func TestAllow_Disabled(t *testing.T) {
	l, _ := newTestLimiter(0)
	for i := 0; i < 100; i++ {
		ok, _, _ := l.Allow("x")
		require.True(t, ok)
	}
}

func TestCleanup_DropsStaleClients(t *testing.T) {
	l, clock := newTestLimiter(5)
	l.Allow("stale")
	clock.advance(4 * time.Minute)
	l.Allow("fresh")

	clock.advance(90 * time.Second)
	l.Allow("fresh")

	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotContains(t, l.clients, "stale")
	require.Contains(t, l.clients, "fresh")
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": " 10.0.0.1 , 10.0.0.2"}, "127.0.0.1:5000", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "127.0.0.1:5000", "10.0.0.9"},
		{"remote addr", nil, "192.168.1.4:5000", "192.168.1.4"},
		{"remote without port", nil, "192.168.1.4", "192.168.1.4"},
		{"nothing", nil, "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, ClientKey(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1)
	e := echo.New()
	e.HTTPErrorHandler = common.HTTPErrorHandler
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/api/info", ok, l.Middleware())
	e.GET("/health", ok, l.Middleware())

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.1.1.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do("/api/info")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("/api/info")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "61", rec.Header().Get("Retry-After"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	for i := 0; i < 3; i++ {
		rec = do("/health")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}
