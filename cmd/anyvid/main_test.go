package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"thirdcoast.systems/anyvid/internal/extraction"
	"thirdcoast.systems/anyvid/internal/proxy"
	"thirdcoast.systems/anyvid/pkg/formats"
)

func TestPickFormat(t *testing.T) {
	catalog := formats.Catalog{
		{FormatID: "22", Extension: "mp4"},
		{FormatID: formats.BestAudioFormatID, Extension: "mp3"},
	}

	f, err := pickFormat(catalog, formats.BestAudioFormatID)
	require.NoError(t, err)
	require.Equal(t, "mp3", f.Extension)

	f, err = pickFormat(catalog, formats.BestFormatID)
	require.NoError(t, err)
	require.Equal(t, "22", f.FormatID)

	_, err = pickFormat(catalog, "999")
	require.Error(t, err)

	_, err = pickFormat(nil, formats.BestFormatID)
	require.Error(t, err)
}

func TestOutputName(t *testing.T) {
	media := &extraction.MediaInfo{Title: "What? A/B test: part 1."}
	require.Equal(t, "What_ A_B test_ part 1.mp4", outputName(media, formats.Format{Extension: "mp4"}))
}

func TestPrintMedia(t *testing.T) {
	size := int64(2048)
	media := &extraction.MediaInfo{
		Title:          "Clip",
		Uploader:       "Someone",
		DurationString: "1:01",
		Formats: formats.Catalog{
			{FormatID: "best", Quality: "1080p", Extension: "mp4", Label: "Best Quality (Merged) MP4"},
			{FormatID: "140", Quality: "129kbps", Extension: "m4a", Filesize: &size, DisplaySize: "2.0 KiB", Label: "Audio M4A"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printMedia(&buf, media))
	out := buf.String()
	require.Contains(t, out, "Clip\nby Someone · 1:01\n")
	require.Contains(t, out, "ID    QUALITY  EXT  SIZE     LABEL")
	require.Contains(t, out, "best  1080p    mp4  -        Best Quality (Merged) MP4")
	require.Contains(t, out, "140   129kbps  m4a  2.0 KiB  Audio M4A")
}

func TestDownload_RemovesFailedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/expired" {
			http.Error(w, "gone", http.StatusForbidden)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	p, err := proxy.New(proxy.Options{})
	require.NoError(t, err)
	s := &services{proxy: p}
	dir := t.TempDir()

	ok := filepath.Join(dir, "ok.mp4")
	n, err := download(context.Background(), s, formats.DirectStream{URL: srv.URL + "/ok"}, ok)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	content, err := os.ReadFile(ok)
	require.NoError(t, err)
	require.Equal(t, "payload", string(content))

	failed := filepath.Join(dir, "failed.mp4")
	_, err = download(context.Background(), s, formats.DirectStream{URL: srv.URL + "/expired"}, failed)
	var upErr *proxy.UpstreamError
	require.ErrorAs(t, err, &upErr)
	require.NoFileExists(t, failed)
}
