package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"thirdcoast.systems/anyvid/internal/extraction"
	"thirdcoast.systems/anyvid/pkg/formats"
	"thirdcoast.systems/anyvid/pkg/utils/filename"
)

func newGetCmd(svc func() *services) *cobra.Command {
	var (
		formatID string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Download one format of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := svc()
			ctx := cmd.Context()

			media, err := s.gateway.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			f, err := pickFormat(media.Formats, formatID)
			if err != nil {
				return err
			}
			if output == "" {
				output = outputName(media, f)
			}

			target, err := formats.ParseTarget(f.URL)
			if err != nil {
				return fmt.Errorf("format %s: %w", f.FormatID, err)
			}

			start := time.Now()
			n, err := download(ctx, s, target, output)
			if err != nil {
				return fmt.Errorf("download %s: %w", f.FormatID, err)
			}
			slog.Info("download finished",
				"file", output,
				"format", f.FormatID,
				"size", humanize.IBytes(uint64(n)),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&formatID, "format", "f", formats.BestFormatID, "Format id as listed by the info command")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: sanitized title)")
	return cmd
}

// pickFormat finds id in the catalog. Asking for "best" on a catalog that
// has no merged entry falls back to the top-ranked format.
func pickFormat(catalog formats.Catalog, id string) (formats.Format, error) {
	for _, f := range catalog {
		if f.FormatID == id {
			return f, nil
		}
	}
	if id == formats.BestFormatID && len(catalog) > 0 {
		return catalog[0], nil
	}
	return formats.Format{}, fmt.Errorf("format %q not found", id)
}

func outputName(media *extraction.MediaInfo, f formats.Format) string {
	return filename.Sanitize(media.Title) + "." + f.Extension
}

// countingWriter tracks bytes written for the mux path, which does not
// report a total.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// download writes target to path. A failed download leaves no file behind.
func download(ctx context.Context, s *services, target formats.Target, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := fetch(ctx, s, target, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Warn("failed to remove partial download", "file", path, "error", rmErr)
		}
		return n, err
	}
	return n, nil
}

func fetch(ctx context.Context, s *services, target formats.Target, w io.Writer) (int64, error) {
	switch t := target.(type) {
	case formats.DirectStream:
		stream, err := s.proxy.Open(ctx, t.URL, "")
		if err != nil {
			return 0, err
		}
		defer stream.Close()
		return stream.Relay(ctx, w)
	case formats.MergeRequest:
		session, err := s.pipeline.Start(ctx, t)
		if err != nil {
			return 0, err
		}
		defer session.Close()
		cw := &countingWriter{w: w}
		err = session.Relay(ctx, cw)
		return cw.n, err
	default:
		return 0, fmt.Errorf("unsupported target %T", target)
	}
}
