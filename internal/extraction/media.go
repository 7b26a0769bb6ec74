package extraction

import (
	"math"
	"strings"

	"thirdcoast.systems/anyvid/pkg/formats"
	"thirdcoast.systems/anyvid/pkg/utils/format"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

// descriptionLimit is the number of characters kept from the description.
const descriptionLimit = 300

// MediaInfo is the resolved media item returned by POST /api/info.
type MediaInfo struct {
	Success        bool            `json:"success"`
	Title          string          `json:"title"`
	Thumbnail      *string         `json:"thumbnail"`
	Duration       *int            `json:"duration"`
	DurationString string          `json:"duration_string"`
	Uploader       string          `json:"uploader"`
	UploaderURL    *string         `json:"uploader_url"`
	WebpageURL     string          `json:"webpage_url"`
	ViewCount      *int64          `json:"view_count"`
	UploadDate     *string         `json:"upload_date"`
	Description    *string         `json:"description"`
	Extractor      string          `json:"extractor"`
	Formats        formats.Catalog `json:"formats"`
}

// newMediaInfo flattens an engine document. requestURL stands in for the
// webpage reference when the engine did not report one.
func newMediaInfo(info *ytdlp.Info, requestURL string) *MediaInfo {
	webpage := firstNonEmpty(info.WebpageURL, requestURL)

	m := &MediaInfo{
		Success:     true,
		Title:       firstNonEmpty(info.Title, info.FullTitle, "Untitled"),
		Thumbnail:   optional(thumbnail(info)),
		Uploader:    firstNonEmpty(info.Uploader, info.Channel),
		UploaderURL: optional(firstNonEmpty(info.UploaderURL, info.ChannelURL)),
		WebpageURL:  webpage,
		UploadDate:  optional(info.UploadDate),
		Extractor:   firstNonEmpty(info.Extractor, info.ExtractorKey),
		Formats:     formats.BuildCatalog(info.Formats, webpage),
	}

	if info.Duration != nil && *info.Duration >= 0 {
		d := int(*info.Duration)
		m.Duration = &d
		m.DurationString = format.Duration(d)
	}
	if info.ViewCount != nil {
		v := int64(math.Round(*info.ViewCount))
		m.ViewCount = &v
	}
	if info.Description != "" {
		d := format.Truncate(info.Description, descriptionLimit)
		m.Description = &d
	}
	if m.Formats == nil {
		m.Formats = formats.Catalog{}
	}

	return m
}

func thumbnail(info *ytdlp.Info) string {
	if info.Thumbnail != "" {
		return info.Thumbnail
	}
	if n := len(info.Thumbnails); n > 0 {
		return info.Thumbnails[n-1].URL
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
