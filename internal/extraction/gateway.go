// Package extraction resolves a page URL into MediaInfo by running the
// extraction engine on a bounded worker pool.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

// Engine fetches the metadata document for a URL. *ytdlp.Client satisfies it.
type Engine interface {
	GetInfo(ctx context.Context, url string, extraArgs ...string) (*ytdlp.Info, error)
}

const genericFailure = "Failed to extract video information"

// engineArgs keep the engine to a single item and make it fail fast.
var engineArgs = []string{
	"--no-warnings",
	"--no-colors",
	"--geo-bypass",
	"--socket-timeout", "15",
	"--extractor-retries", "2",
	"--no-check-certificates",
	"--playlist-items", "1",
}

// Gateway runs engine calls off the request goroutine. At most Workers calls
// run at once, each bounded by Timeout. Concurrent requests for the same URL
// share one engine call.
type Gateway struct {
	engine  Engine
	timeout time.Duration
	sem     *semaphore.Weighted
	group   singleflight.Group
}

// NewGateway returns a Gateway. Non-positive workers or timeout fall back to
// 4 workers and 30 seconds.
func NewGateway(engine Engine, workers int, timeout time.Duration) *Gateway {
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		engine:  engine,
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(workers)),
	}
}

// Resolve returns the MediaInfo for url. Errors are *ExtractionError,
// *TimeoutError or *EmptyResultError; a cancelled ctx returns ctx.Err().
//
// The engine call is detached from ctx: a caller that gives up does not kill
// a call other callers may be sharing, and the call still ends at Timeout.
func (g *Gateway) Resolve(ctx context.Context, url string) (*MediaInfo, error) {
	ch := g.group.DoChan(url, func() (any, error) {
		return g.resolve(context.WithoutCancel(ctx), url)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*MediaInfo), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gateway) resolve(ctx context.Context, url string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("extraction: no worker available", "url", url, "timeout", g.timeout)
		return nil, &TimeoutError{After: g.timeout}
	}
	defer g.sem.Release(1)

	start := time.Now()
	info, err := g.engine.GetInfo(ctx, url, engineArgs...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("extraction: engine timed out", "url", url, "timeout", g.timeout)
			return nil, &TimeoutError{After: g.timeout}
		}
		return nil, engineError(url, err)
	}
	if info == nil {
		return nil, &EmptyResultError{Reason: "Could not extract video information from this URL"}
	}

	if info.IsPlaylist() {
		entry, err := info.FirstEntry()
		if err != nil {
			slog.Error("extraction: bad playlist entry", "url", url, "error", err)
			return nil, &ExtractionError{Type: ErrExtraction, Message: genericFailure, Err: err}
		}
		if entry == nil {
			return nil, &EmptyResultError{Reason: "Playlist is empty or entries are unavailable"}
		}
		info = entry
	}

	media := newMediaInfo(info, url)
	slog.Info("extraction: resolved",
		"url", url,
		"extractor", media.Extractor,
		"formats", len(media.Formats),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return media, nil
}

func engineError(url string, err error) error {
	var execErr *ytdlp.ExecError
	if errors.As(err, &execErr) {
		msg := execErr.Message()
		if msg == "" {
			msg = genericFailure
		}
		slog.Info("extraction: engine rejected url", "url", url, "message", msg)
		return &ExtractionError{Type: Classify(msg), Message: msg, Err: err}
	}
	slog.Error("extraction: engine failed", "url", url, "error", err)
	return &ExtractionError{Type: ErrExtraction, Message: genericFailure, Err: err}
}
