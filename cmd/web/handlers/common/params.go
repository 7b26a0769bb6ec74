package common

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// QueryParamOr returns the trimmed query parameter, or def when it is empty.
func QueryParamOr(c echo.Context, name, def string) string {
	if v := strings.TrimSpace(c.QueryParam(name)); v != "" {
		return v
	}
	return def
}
