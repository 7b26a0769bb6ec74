package format

import "github.com/dustin/go-humanize"

// Size returns a human-readable byte size using binary units (e.g. "1.5 MiB").
func Size(b int64) string {
	if b < 0 {
		return ""
	}
	return humanize.IBytes(uint64(b))
}

// Truncate keeps the first max characters of s and appends "..." when
// anything was cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
