package ytdlp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Info is a light wrapper over yt-dlp JSON output. It models only the fields
// the catalog and media document need.
// Numeric fields are pointers because extractors report them inconsistently
// and "absent" must stay distinguishable from zero.
type Info struct {
	Type         string            `json:"_type"`
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	FullTitle    string            `json:"fulltitle"`
	Thumbnail    string            `json:"thumbnail"`
	Thumbnails   []Thumbnail       `json:"thumbnails"`
	Duration     *float64          `json:"duration"`
	Uploader     string            `json:"uploader"`
	Channel      string            `json:"channel"`
	UploaderURL  string            `json:"uploader_url"`
	ChannelURL   string            `json:"channel_url"`
	WebpageURL   string            `json:"webpage_url"`
	URL          string            `json:"url"`
	ViewCount    *float64          `json:"view_count"`
	UploadDate   string            `json:"upload_date"`
	Description  string            `json:"description"`
	Extractor    string            `json:"extractor"`
	ExtractorKey string            `json:"extractor_key"`
	Ext          string            `json:"ext"`
	Formats      []RawFormat       `json:"formats"`
	Entries      []json.RawMessage `json:"entries,omitempty"`
}

type Thumbnail struct {
	URL string `json:"url"`
}

// RawFormat is one stream descriptor as reported by the extractor.
type RawFormat struct {
	FormatID       string   `json:"format_id"`
	URL            string   `json:"url"`
	ManifestURL    string   `json:"manifest_url"`
	Protocol       string   `json:"protocol"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
	Height         *float64 `json:"height"`
	Width          *float64 `json:"width"`
	FPS            *float64 `json:"fps"`
	Ext            string   `json:"ext"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	TBR            *float64 `json:"tbr"`
	ABR            *float64 `json:"abr"`
}

// IsPlaylist reports whether the document wraps a list of entries.
func (i *Info) IsPlaylist() bool {
	return i.Type == "playlist"
}

// FirstEntry decodes the first playlist entry. It returns nil when the
// playlist is empty or the first entry is null (unavailable).
func (i *Info) FirstEntry() (*Info, error) {
	if len(i.Entries) == 0 {
		return nil, nil
	}
	raw := bytes.TrimSpace(i.Entries[0])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	entry := &Info{}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, fmt.Errorf("ytdlp: parse playlist entry: %w", err)
	}
	return entry, nil
}
