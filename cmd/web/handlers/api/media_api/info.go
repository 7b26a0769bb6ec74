// Package media_api serves media lookups and downloads.
package media_api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/anyvid/cmd/web/handlers/common"
	"thirdcoast.systems/anyvid/internal/extraction"
)

var httpRe = regexp.MustCompile(`(?i)^https?://`)

// Resolver looks up media metadata for a page URL.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*extraction.MediaInfo, error)
}

// InfoRequest is the body of POST /api/info.
type InfoRequest struct {
	URL string `json:"url" validate:"required,min=5"`
}

// HandleInfo resolves a page URL into its metadata and format catalog.
func HandleInfo(resolver Resolver, maxURLLength int) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req InfoRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrInvalidURL("Invalid request body.")
		}
		req.URL = strings.TrimSpace(req.URL)
		if err := c.Validate(&req); err != nil {
			return err
		}
		if len(req.URL) > maxURLLength {
			return common.ErrInvalidURL("URL is too long.")
		}
		if !httpRe.MatchString(req.URL) {
			return common.ErrInvalidURL("URL must start with http:// or https://")
		}
		if strings.ContainsAny(req.URL, "\n\r\x00") {
			return common.ErrInvalidURL("URL contains invalid characters")
		}

		ctx := c.Request().Context()
		media, err := resolver.Resolve(ctx, req.URL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Info("info: client went away", "url", req.URL)
				return nil
			}
			return err
		}
		return c.JSON(http.StatusOK, media)
	}
}
