// Package cookies persists the Netscape cookie file handed to yt-dlp.
package cookies

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// ErrEmpty is returned when the submitted cookie file has no content.
var ErrEmpty = errors.New("cookies: content is empty")

// Store writes the cookie file at a fixed path.
type Store struct {
	fs   afero.Afero
	path string
}

// NewStore returns a Store backed by fs. Pass afero.NewOsFs() in production.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: afero.Afero{Fs: fs}, path: path}
}

// Path is the cookie file location passed to yt-dlp.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a cookie file is present.
func (s *Store) Exists() bool {
	ok, err := s.fs.Exists(s.path)
	return err == nil && ok
}

// Save replaces the cookie file with content. Line endings are normalized to
// LF and the file always ends with a newline. The write goes through a temp
// file so concurrent yt-dlp invocations never read a partial file.
func (s *Store) Save(content string) error {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	if strings.TrimSpace(content) == "" {
		return ErrEmpty
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cookies: create dir: %w", err)
	}

	tmp, err := s.fs.TempFile(dir, ".cookies-*")
	if err != nil {
		return fmt.Errorf("cookies: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("cookies: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("cookies: close: %w", err)
	}
	if err := s.fs.Chmod(tmpName, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("cookies: chmod failed", "path", tmpName, "error", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("cookies: replace: %w", err)
	}

	slog.Info("cookies: file updated", "path", s.path, "size", humanize.IBytes(uint64(len(content))))
	return nil
}
