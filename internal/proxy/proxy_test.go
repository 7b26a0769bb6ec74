package proxy

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestProxy(t *testing.T, opts Options) *Proxy {
	t.Helper()
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestOpen_RangePassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bytes=0-3", r.Header.Get("Range"))
		require.Equal(t, "identity", r.Header.Get("Accept-Encoding"))
		require.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 0-3/10")
		w.Header().Set("Content-Length", "4")
		w.Header().Set("X-Upstream-Secret", "nope")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("abcd"))
	}))
	defer srv.Close()

	p := newTestProxy(t, Options{})
	stream, err := p.Open(context.Background(), srv.URL+"/v.mp4", "bytes=0-3")
	require.NoError(t, err)

	require.Equal(t, http.StatusPartialContent, stream.Status)
	require.Equal(t, "bytes 0-3/10", stream.Header.Get("Content-Range"))
	require.Equal(t, "4", stream.Header.Get("Content-Length"))
	require.Equal(t, "video/mp4", stream.Header.Get("Content-Type"))
	require.Equal(t, "bytes", stream.Header.Get("Accept-Ranges"))
	require.Empty(t, stream.Header.Get("X-Upstream-Secret"))

	var buf bytes.Buffer
	n, err := stream.Relay(context.Background(), &buf)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Equal(t, "abcd", buf.String())
}

func TestOpen_DefaultContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("raw"))
	}))
	defer srv.Close()

	stream, err := newTestProxy(t, Options{}).Open(context.Background(), srv.URL, "")
	require.NoError(t, err)
	defer stream.Close()

	require.Equal(t, http.StatusOK, stream.Status)
	require.Equal(t, "application/octet-stream", stream.Header.Get("Content-Type"))
}

func TestOpen_UpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestProxy(t, Options{}).Open(context.Background(), srv.URL, "")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	require.Equal(t, http.StatusForbidden, upErr.Status)
}

func TestOpen_InvalidURLNeverDials(t *testing.T) {
	p := newTestProxy(t, Options{})
	for _, raw := range []string{"ftp://example.com/a", "merge:1+2:https://x", "file:///etc/passwd", ""} {
		_, err := p.Open(context.Background(), raw, "")
		require.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestOpen_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestProxy(t, Options{ConnectTimeout: time.Second}).Open(context.Background(), url, "")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	require.Zero(t, upErr.Status)
}

func TestOpen_HeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestProxy(t, Options{ReadTimeout: 50 * time.Millisecond}).Open(context.Background(), srv.URL, "")
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestOpen_PoolTimeoutIsIndependent(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := newTestProxy(t, Options{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		PoolTimeout:    50 * time.Millisecond,
		MaxConns:       1,
	})

	// Holds the only connection the host is allowed.
	first, err := p.Open(context.Background(), srv.URL+"/a", "")
	require.NoError(t, err)
	defer first.Close()

	start := time.Now()
	_, err = p.Open(context.Background(), srv.URL+"/b", "")
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, "pool", timeoutErr.Phase)
	require.Equal(t, 50*time.Millisecond, timeoutErr.After)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestPhaseTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	phases := &phaseTimer{cancel: cancel}

	phases.start("write", time.Hour)
	phases.stop()
	require.Nil(t, phases.err())
	require.NoError(t, ctx.Err())

	phases.start("write", 10*time.Millisecond)
	<-ctx.Done()
	require.Equal(t, &TimeoutError{Phase: "write", After: 10 * time.Millisecond}, phases.err())
}

func TestRelay_IdleTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	stream, err := newTestProxy(t, Options{ReadTimeout: 100 * time.Millisecond}).Open(context.Background(), srv.URL, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = stream.Relay(context.Background(), &buf)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, "read", timeoutErr.Phase)
	require.Equal(t, "first", buf.String())
}

func TestRelay_ClientCancelClosesUpstream(t *testing.T) {
	upstreamDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(upstreamDone)
		chunk := []byte(strings.Repeat("x", 1024))
		for {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := newTestProxy(t, Options{}).Open(ctx, srv.URL, "")
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, cancel)
	_, err = stream.Relay(ctx, &bytes.Buffer{})
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)

	select {
	case <-upstreamDone:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream connection was not closed")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }

func TestRelay_WriteErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	stream, err := newTestProxy(t, Options{}).Open(context.Background(), srv.URL, "")
	require.NoError(t, err)

	_, err = stream.Relay(context.Background(), failingWriter{})
	require.ErrorContains(t, err, "client gone")
	require.NoError(t, stream.Close())
}
