package media_api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/anyvid/cmd/web/handlers/common"
	"thirdcoast.systems/anyvid/internal/mux"
	"thirdcoast.systems/anyvid/internal/proxy"
	"thirdcoast.systems/anyvid/pkg/formats"
	"thirdcoast.systems/anyvid/pkg/utils/filename"
)

var (
	targetRe = regexp.MustCompile(`(?i)^\s*(https?://|merge:)`)
	extRe    = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

const (
	minDownloadURLLength = 5
	maxFilenameLength    = 250
	maxExtLength         = 10
)

// StreamOpener opens a direct upstream stream.
type StreamOpener interface {
	Open(ctx context.Context, rawURL, rangeHeader string) (*proxy.Stream, error)
}

// MuxStarter starts a merged download session.
type MuxStarter interface {
	Start(ctx context.Context, req formats.MergeRequest) (*mux.Session, error)
}

// HandleDownload streams a catalog URL to the client: direct URLs are
// proxied with range passthrough, merge references are muxed on the fly.
// Failures after the first byte are only logged.
func HandleDownload(opener StreamOpener, muxer MuxStarter, maxURLLength int) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.QueryParam("url")
		if len(raw) < minDownloadURLLength || len(raw) > maxURLLength {
			return common.ErrInvalidURL("Invalid download URL.")
		}
		name := common.QueryParamOr(c, "filename", "video")
		ext := common.QueryParamOr(c, "ext", "mp4")
		if len(name) > maxFilenameLength || len(ext) > maxExtLength || !extRe.MatchString(ext) {
			return common.ErrInvalidURL("Invalid filename or extension.")
		}

		target, err := formats.ParseTarget(unescapeURL(raw))
		if err != nil {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "merge:") {
				return common.ErrInvalidURL("Invalid merge URL format.")
			}
			return common.ErrInvalidURL("Invalid download URL.")
		}

		fullName := filename.Sanitize(name) + "." + ext

		switch t := target.(type) {
		case formats.DirectStream:
			return streamDirect(c, opener, t, fullName)
		case formats.MergeRequest:
			return streamMerge(c, muxer, t, fullName)
		default:
			return common.ErrInvalidURL("Invalid download URL.")
		}
	}
}

// unescapeURL decodes a url parameter that arrived percent-encoded twice.
func unescapeURL(raw string) string {
	if targetRe.MatchString(raw) || !strings.Contains(raw, "%") {
		return raw
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func streamDirect(c echo.Context, opener StreamOpener, target formats.DirectStream, fullName string) error {
	ctx := c.Request().Context()
	stream, err := opener.Open(ctx, target.URL, c.Request().Header.Get("Range"))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("download: client went away before upstream answered")
			return nil
		}
		return err
	}
	defer stream.Close()

	h := c.Response().Header()
	for key, values := range stream.Header {
		h[key] = values
	}
	h.Set(echo.HeaderContentDisposition, filename.ContentDisposition(fullName))
	common.SetStreamHeaders(c)
	c.Response().WriteHeader(stream.Status)

	start := time.Now()
	n, err := stream.Relay(ctx, c.Response())
	logStreamEnd("direct", fullName, n, start, err)
	return nil
}

func streamMerge(c echo.Context, muxer MuxStarter, req formats.MergeRequest, fullName string) error {
	ctx := c.Request().Context()
	session, err := muxer.Start(ctx, req)
	if err != nil {
		return err
	}
	defer session.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "video/mp4")
	h.Set(echo.HeaderContentDisposition, filename.ContentDisposition(fullName))
	common.SetStreamHeaders(c)
	c.Response().WriteHeader(http.StatusOK)

	start := time.Now()
	err = session.Relay(ctx, c.Response())
	logStreamEnd("merge", fullName, c.Response().Size, start, err)
	return nil
}

func logStreamEnd(kind, name string, n int64, start time.Time, err error) {
	fields := []any{
		"kind", kind,
		"filename", name,
		"sent", humanize.IBytes(uint64(max(n, 0))),
		"elapsed", time.Since(start).Round(time.Millisecond),
	}
	switch {
	case err == nil:
		slog.Info("download: stream finished", fields...)
	case errors.Is(err, context.Canceled):
		slog.Info("download: client disconnected", fields...)
	default:
		slog.Warn("download: stream ended early", append(fields, "error", err)...)
	}
}
