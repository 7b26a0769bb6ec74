package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"thirdcoast.systems/anyvid/pkg/process"
)

// Process is a running yt-dlp invocation whose output goes to a file or pipe.
type Process = process.Process

// StartFormatStream launches yt-dlp to fetch exactly one format of webpageURL
// and write its raw bytes to dest, which is usually a named pipe. The caller
// owns the returned process and must Wait or Kill it.
func (c *Client) StartFormatStream(ctx context.Context, formatID, webpageURL, dest string) (*Process, error) {
	if strings.TrimSpace(formatID) == "" {
		return nil, fmt.Errorf("ytdlp: format id is required")
	}
	if strings.TrimSpace(webpageURL) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}
	if strings.TrimSpace(dest) == "" {
		return nil, fmt.Errorf("ytdlp: dest is required")
	}

	args := []string{
		"-f", formatID,
		"-o", dest,
		"--no-part",
		"--quiet",
		"--no-warnings",
	}
	args = append(c.globalArgs(), args...)
	args = append(args, webpageURL)

	name := c.PathOrDefault()
	if c.startFn != nil {
		return c.startFn(ctx, name, args...)
	}
	return startProcess(ctx, name, args, formatID)
}

func startProcess(ctx context.Context, name string, args []string, formatID string) (*Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &streamWriter{
		callback: func(line string) {
			slog.Debug("ytdlp: producer output", "format_id", formatID, "line", line)
		},
	}

	p, err := process.Start(cmd, func(err error, stderr string) error {
		return wrapExecError(name, args, nil, []byte(stderr), err)
	})
	if err != nil {
		return nil, fmt.Errorf("ytdlp: failed to start: %w", err)
	}
	return p, nil
}
