package cookies

import (
	"strconv"
	"strings"
)

// Summary counts the cookie lines of a Netscape cookie file.
type Summary struct {
	Lines        int
	Valid        int
	Invalid      int
	FirstInvalid string
}

// Inspect checks each non-comment line for the seven TAB-separated fields
// domain, flag, path, secure, expiration, name and value. Expiration must be
// an integer.
func Inspect(content string) Summary {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")

	sum := Summary{Lines: len(lines)}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		// #HttpOnly_ prefixes a real cookie line, not a comment.
		if trimmed == "" || (strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#HttpOnly_")) {
			continue
		}

		parts := strings.Split(trimmed, "\t")
		if len(parts) >= 7 {
			if _, err := strconv.ParseInt(parts[4], 10, 64); err == nil {
				sum.Valid++
				continue
			}
		}
		sum.Invalid++
		if sum.FirstInvalid == "" {
			sum.FirstInvalid = trimmed
		}
	}
	return sum
}
