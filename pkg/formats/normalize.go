package formats

import (
	"math"
	"strings"

	"thirdcoast.systems/anyvid/pkg/utils/format"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

// skippedProtocols are manifest or fragment protocols the proxy cannot relay
// as a single byte stream. m3u8_native is deliberately absent.
var skippedProtocols = map[string]struct{}{
	"m3u8": {},
	"f4m":  {},
	"f4f":  {},
	"ism":  {},
}

var skippedExtensions = map[string]struct{}{
	"mhtml": {},
	"json":  {},
}

// Normalize converts one raw descriptor into a Format. The boolean is false
// when the descriptor is not a downloadable media stream.
func Normalize(raw ytdlp.RawFormat) (Format, bool) {
	url := strings.TrimSpace(raw.URL)
	if url == "" {
		url = strings.TrimSpace(raw.ManifestURL)
	}
	if url == "" {
		return Format{}, false
	}

	if _, skip := skippedProtocols[strings.ToLower(raw.Protocol)]; skip {
		return Format{}, false
	}

	ext := strings.TrimSpace(raw.Ext)
	if ext == "" {
		ext = defaultExtension
	}
	if _, skip := skippedExtensions[strings.ToLower(ext)]; skip {
		return Format{}, false
	}

	vcodec := codecName(raw.VCodec)
	acodec := codecName(raw.ACodec)
	if strings.Contains(strings.ToLower(vcodec), "storyboard") || strings.Contains(strings.ToLower(acodec), "storyboard") {
		return Format{}, false
	}

	hasVideo := vcodec != codecNone
	hasAudio := acodec != codecNone

	height := intPtr(raw.Height)
	quality := qualityLabel(hasVideo, hasAudio, height, raw.FPS, raw.ABR, raw.TBR)

	f := Format{
		FormatID:       raw.FormatID,
		Label:          displayLabel(quality, ext, hasVideo, hasAudio),
		Quality:        quality,
		Extension:      ext,
		Filesize:       int64Ptr(raw.Filesize),
		FilesizeApprox: int64Ptr(raw.FilesizeApprox),
		IsAudio:        hasAudio && !hasVideo,
		IsVideoOnly:    hasVideo && !hasAudio,
		HasVideo:       hasVideo,
		HasAudio:       hasAudio,
		Height:         height,
		Width:          intPtr(raw.Width),
		FPS:            raw.FPS,
		TBR:            raw.TBR,
		ABR:            raw.ABR,
		URL:            url,
	}
	if hasVideo {
		f.VCodec = &vcodec
	}
	if hasAudio {
		f.ACodec = &acodec
	}
	f.DisplaySize = displaySize(f)
	return f, true
}

func codecName(c *string) string {
	if c == nil {
		return codecNone
	}
	v := strings.TrimSpace(*c)
	if v == "" {
		return codecNone
	}
	return v
}

func displaySize(f Format) string {
	switch {
	case f.Filesize != nil:
		return format.Size(*f.Filesize)
	case f.FilesizeApprox != nil:
		return format.Size(*f.FilesizeApprox)
	default:
		return ""
	}
}

func intPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func int64Ptr(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(math.Round(*v))
	return &n
}
