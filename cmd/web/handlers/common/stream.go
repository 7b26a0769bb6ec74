package common

import "github.com/labstack/echo/v4"

// SetStreamHeaders disables proxy buffering and caching for streamed
// download bodies. Call before the first write.
func SetStreamHeaders(c echo.Context) {
	h := c.Response().Header()
	h.Set("X-Accel-Buffering", "no")
	h.Set("Cache-Control", "no-store")
}
