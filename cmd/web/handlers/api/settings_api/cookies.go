// package settings_api provides settings-related API handlers.
package settings_api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/anyvid/cmd/web/handlers/common"
	"thirdcoast.systems/anyvid/internal/cookies"
)

// CookieSaver replaces the cookie file handed to yt-dlp.
type CookieSaver interface {
	Save(content string) error
}

// CookiesRequest is the body of POST /api/cookies.
type CookiesRequest struct {
	Content string `json:"content" validate:"required"`
}

type cookiesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleUpdateCookies replaces the cookie file with a Netscape cookies.txt
// export. Files without a single well-formed cookie line are rejected.
func HandleUpdateCookies(store CookieSaver) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req CookiesRequest
		if err := common.BindAndValidate(c, &req); err != nil {
			return err
		}

		sum := cookies.Inspect(req.Content)
		if sum.Valid == 0 {
			slog.Warn("invalid cookies format", "lines", sum.Lines, "invalid_lines", sum.Invalid, "first_invalid", sum.FirstInvalid)
			msg := fmt.Sprintf("Invalid format. Found %d invalid cookie lines. ", sum.Invalid)
			msg += "Cookies must be in Netscape format with TAB-separated values (not spaces)."
			return common.ErrInvalidURL(msg)
		}

		if err := store.Save(req.Content); err != nil {
			if errors.Is(err, cookies.ErrEmpty) {
				return common.ErrInvalidURL("No cookies content provided.")
			}
			return common.ErrInternal("Failed to save cookies.", err)
		}

		slog.Info("cookies updated via api", "lines", sum.Lines, "valid_cookies", sum.Valid, "invalid_lines", sum.Invalid)
		return c.JSON(http.StatusOK, cookiesResponse{Success: true, Message: "Cookies updated successfully"})
	}
}
