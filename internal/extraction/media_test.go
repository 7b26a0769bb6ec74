package extraction

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

func TestNewMediaInfo_Fallbacks(t *testing.T) {
	info := &ytdlp.Info{
		FullTitle:    "Full Title",
		Thumbnails:   []ytdlp.Thumbnail{{URL: "https://img/small.jpg"}, {URL: "https://img/large.jpg"}},
		Channel:      "Some Channel",
		ChannelURL:   "https://example.com/c/some",
		ExtractorKey: "Generic",
		ViewCount:    ptr(1234.0),
		UploadDate:   "20240102",
		Description:  strings.Repeat("é", 400),
	}

	m := newMediaInfo(info, "https://example.com/watch")
	require.Equal(t, "Full Title", m.Title)
	require.Equal(t, "https://img/large.jpg", *m.Thumbnail)
	require.Equal(t, "Some Channel", m.Uploader)
	require.Equal(t, "https://example.com/c/some", *m.UploaderURL)
	require.Equal(t, "Generic", m.Extractor)
	require.Equal(t, "https://example.com/watch", m.WebpageURL)
	require.Equal(t, int64(1234), *m.ViewCount)
	require.Equal(t, "20240102", *m.UploadDate)
	require.Equal(t, 303, utf8.RuneCountInString(*m.Description))
	require.True(t, strings.HasSuffix(*m.Description, "..."))
	require.Nil(t, m.Duration)
	require.Empty(t, m.DurationString)
}

func TestNewMediaInfo_Untitled(t *testing.T) {
	m := newMediaInfo(&ytdlp.Info{Description: "short"}, "https://example.com/x")
	require.Equal(t, "Untitled", m.Title)
	require.Nil(t, m.Thumbnail)
	require.Nil(t, m.UploaderURL)
	require.Equal(t, "short", *m.Description)
	require.NotNil(t, m.Formats)
}

func TestNewMediaInfo_LongDuration(t *testing.T) {
	m := newMediaInfo(&ytdlp.Info{Duration: ptr(3723.9)}, "https://example.com/x")
	require.Equal(t, 3723, *m.Duration)
	require.Equal(t, "1:02:03", m.DurationString)
}
