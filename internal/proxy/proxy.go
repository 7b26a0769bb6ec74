// Package proxy relays a remote media URL to a client in fixed-size chunks,
// passing range requests through.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultChunkSize is the relay buffer size.
	DefaultChunkSize = 64 * 1024

	idleConnTimeout = 90 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
)

var httpRe = regexp.MustCompile(`(?i)^https?://`)

// ErrInvalidURL is returned before any network call for non-http(s) URLs.
var ErrInvalidURL = errors.New("proxy: url must be http or https")

// UpstreamError is a failed upstream exchange. Status is zero when no
// response was received.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("proxy: upstream returned %d", e.Status)
	}
	return fmt.Sprintf("proxy: upstream request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TimeoutError means the upstream stopped answering within a configured limit.
type TimeoutError struct {
	Phase string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("proxy: upstream %s timed out after %s", e.Phase, e.After)
}

// Options tune the upstream client. Zero values take the defaults noted.
type Options struct {
	ConnectTimeout time.Duration // dial and TLS handshake, 15s
	ReadTimeout    time.Duration // response headers and each body chunk, 120s
	WriteTimeout   time.Duration // connection acquired until the request is written, 30s
	PoolTimeout    time.Duration // waiting for an idle connection or a dial slot, 30s
	MaxConns       int           // per upstream host, 20
	ChunkSize      int           // relay buffer, 64 KiB
	ProxyURL       string        // outbound proxy; environment proxy when empty
}

func (o *Options) setDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 15 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 120 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.PoolTimeout <= 0 {
		o.PoolTimeout = 30 * time.Second
	}
	if o.MaxConns <= 0 {
		o.MaxConns = 20
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
}

// Proxy opens upstream streams. It is safe for concurrent use.
type Proxy struct {
	client *http.Client
	opts   Options
}

// New builds a Proxy with its own connection pool.
func New(opts Options) (*Proxy, error) {
	opts.setDefaults()

	proxyFn := http.ProxyFromEnvironment
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("proxy: parse proxy url: %w", err)
		}
		proxyFn = http.ProxyURL(u)
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 proxyFn,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxConnsPerHost:       opts.MaxConns,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       idleConnTimeout,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}

	return &Proxy{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}, nil
}

// Stream is an open upstream response. Header holds only what is forwarded
// to the client. The caller must Close it.
type Stream struct {
	Status int
	Header http.Header

	body        io.ReadCloser
	cancel      context.CancelFunc
	chunkSize   int
	readTimeout time.Duration
	timedOut    atomic.Bool
	closeOnce   sync.Once
}

// forwardedHeaders are copied from the upstream response to the client.
var forwardedHeaders = []string{"Accept-Ranges", "Content-Length", "Content-Range", "Content-Type"}

// Open issues the upstream GET. rangeHeader is forwarded verbatim when set.
// An upstream status of 400 or more closes the connection and returns
// *UpstreamError without exposing any body.
func (p *Proxy) Open(ctx context.Context, rawURL, rangeHeader string) (*Stream, error) {
	if !httpRe.MatchString(rawURL) {
		return nil, ErrInvalidURL
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	phases := &phaseTimer{cancel: cancel}
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GetConn: func(string) { phases.start("pool", p.opts.PoolTimeout) },
		// Dialing is bounded by the connect timeout.
		ConnectStart: func(string, string) { phases.stop() },
		GotConn:      func(httptrace.GotConnInfo) { phases.start("write", p.opts.WriteTimeout) },
		WroteRequest: func(httptrace.WroteRequestInfo) { phases.stop() },
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, ErrInvalidURL
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := p.client.Do(req)
	phases.stop()
	if err != nil {
		cancel()
		if timeoutErr := phases.err(); timeoutErr != nil {
			return nil, timeoutErr
		}
		if parent.Err() != nil {
			// The client went away before the upstream answered.
			return nil, parent.Err()
		}
		if isTimeout(err) {
			if isConnectFailure(err) {
				return nil, &TimeoutError{Phase: "connect", After: p.opts.ConnectTimeout}
			}
			return nil, &TimeoutError{Phase: "response", After: p.opts.ReadTimeout}
		}
		return nil, &UpstreamError{Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		cancel()
		slog.Warn("proxy: upstream rejected request", "status", resp.StatusCode, "host", req.URL.Host)
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	header := make(http.Header)
	for _, name := range forwardedHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/octet-stream")
	}
	if header.Get("Accept-Ranges") == "" {
		header.Set("Accept-Ranges", "bytes")
	}

	return &Stream{
		Status:      resp.StatusCode,
		Header:      header,
		body:        resp.Body,
		cancel:      cancel,
		chunkSize:   p.opts.ChunkSize,
		readTimeout: p.opts.ReadTimeout,
	}, nil
}

// Relay copies the upstream body to w chunk by chunk, flushing after each
// write when w is an http.Flusher. It stops when ctx is done, when the
// upstream stalls for longer than the read timeout, or on any I/O error.
// The upstream is closed when Relay returns.
func (s *Stream) Relay(ctx context.Context, w io.Writer) (int64, error) {
	defer s.Close()

	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	idle := time.AfterFunc(s.readTimeout, func() {
		s.timedOut.Store(true)
		s.cancel()
	})
	defer idle.Stop()

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, s.chunkSize)
	var written int64

	for {
		n, readErr := s.body.Read(buf)
		if n > 0 {
			// A slow client is not an idle upstream.
			idle.Stop()
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, fmt.Errorf("proxy: write to client: %w", err)
			}
			if flusher != nil {
				flusher.Flush()
			}
			idle.Reset(s.readTimeout)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			switch {
			case s.timedOut.Load():
				return written, &TimeoutError{Phase: "read", After: s.readTimeout}
			case ctx.Err() != nil:
				return written, ctx.Err()
			default:
				return written, &UpstreamError{Err: readErr}
			}
		}
	}
}

// Close releases the upstream connection. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
		s.cancel()
	})
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return strings.Contains(err.Error(), "TLS handshake timeout")
}

// phaseTimer bounds one request phase at a time and cancels the request
// when the running phase overstays its limit.
type phaseTimer struct {
	mu     sync.Mutex
	timer  *time.Timer
	fired  *TimeoutError
	cancel context.CancelFunc
}

func (t *phaseTimer) start(phase string, limit time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(limit, func() {
		t.mu.Lock()
		if t.fired == nil {
			t.fired = &TimeoutError{Phase: phase, After: limit}
		}
		t.mu.Unlock()
		t.cancel()
	})
}

func (t *phaseTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *phaseTimer) err() *TimeoutError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
