// Package filename provides utilities for sanitizing strings into safe filenames.
package filename

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// invalidCharsRe matches characters not safe for filenames across all major OSes.
var invalidCharsRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

const (
	// MaxLen is the longest name Sanitize returns, in characters.
	MaxLen = 200

	fallback = "download"
)

// Sanitize makes name safe for use in a Content-Disposition header and on
// disk. Unsafe characters become underscores, leading/trailing dots and
// spaces are stripped, and the result is capped at MaxLen characters.
// An empty result becomes "download".
func Sanitize(name string) string {
	s := norm.NFC.String(name)
	s = invalidCharsRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, ". ")
	if s == "" {
		return fallback
	}

	if r := []rune(s); len(r) > MaxLen {
		s = string(r[:MaxLen])
	}
	return s
}

// ContentDisposition returns an attachment header value carrying name in the
// RFC 5987 UTF-8 form.
func ContentDisposition(name string) string {
	return "attachment; filename*=utf-8''" + encodeRFC5987(name)
}

// encodeRFC5987 percent-encodes everything except unreserved characters.
func encodeRFC5987(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
