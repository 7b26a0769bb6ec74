// Package ratelimit is an in-memory sliding-window limiter for the API routes.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/anyvid/cmd/web/handlers/common"
)

const (
	defaultWindow = time.Minute
	cleanupEvery  = 5 * time.Minute
	headerLimit   = "X-RateLimit-Limit"
	headerRemain  = "X-RateLimit-Remaining"
	headerRetry   = "Retry-After"
	unknownClient = "unknown"
	apiPathPrefix = "/api/"
)

// Limiter allows up to limit requests per client within a sliding window.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	clients     map[string][]time.Time
	lastCleanup time.Time
}

// New returns a Limiter allowing perMinute requests per client. A limit of
// zero or less disables limiting.
func New(perMinute int) *Limiter {
	return &Limiter{
		limit:       perMinute,
		window:      defaultWindow,
		now:         time.Now,
		clients:     make(map[string][]time.Time),
		lastCleanup: time.Now(),
	}
}

// Limit is the configured requests per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// Allow records a request for key. When allowed it returns the requests
// left in the window; otherwise how long until the oldest one expires.
func (l *Limiter) Allow(key string) (ok bool, remaining int, retryAfter time.Duration) {
	if l.limit <= 0 {
		return true, 0, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	cutoff := now.Add(-l.window)
	stamps := l.clients[key]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	stamps = stamps[i:]

	if len(stamps) >= l.limit {
		l.clients[key] = stamps
		wait := stamps[0].Sub(cutoff)
		secs := time.Duration(int(wait/time.Second)+1) * time.Second
		return false, 0, secs
	}

	stamps = append(stamps, now)
	l.clients[key] = stamps
	return true, l.limit - len(stamps), 0
}

// cleanup drops clients whose newest request has left the window. Must be
// called with mu held.
func (l *Limiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < cleanupEvery {
		return
	}
	l.lastCleanup = now

	cutoff := now.Add(-l.window)
	dropped := 0
	for key, stamps := range l.clients {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.clients, key)
			dropped++
		}
	}
	if dropped > 0 {
		slog.Debug("ratelimit: dropped stale clients", "count", dropped, "remaining", len(l.clients))
	}
}

// ClientKey identifies the caller: the first X-Forwarded-For entry, then
// X-Real-IP, then the connection's remote address.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return unknownClient
}

// Middleware limits /api/ routes. Other paths, /health included, pass
// through untouched.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.Limit() <= 0 || !strings.HasPrefix(c.Request().URL.Path, apiPathPrefix) {
				return next(c)
			}

			key := ClientKey(c.Request())
			ok, remaining, retryAfter := l.Allow(key)

			h := c.Response().Header()
			h.Set(headerLimit, strconv.Itoa(l.Limit()))
			if !ok {
				h.Set(headerRemain, "0")
				h.Set(headerRetry, strconv.Itoa(int(retryAfter/time.Second)))
				slog.Info("ratelimit: request rejected", "client", key, "retry_after", retryAfter)
				return common.ErrRateLimited()
			}
			h.Set(headerRemain, strconv.Itoa(remaining))
			return next(c)
		}
	}
}
