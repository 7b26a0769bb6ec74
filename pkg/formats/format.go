// Package formats turns extractor-reported stream descriptors into the
// ranked, deduplicated catalog served to clients.
package formats

// Format is one downloadable variant of a media item.
// Pointer fields are null in JSON when the extractor did not report them.
type Format struct {
	FormatID       string   `json:"format_id"`
	Label          string   `json:"label"`
	Quality        string   `json:"quality"`
	Extension      string   `json:"extension"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	DisplaySize    string   `json:"display_size"`
	IsAudio        bool     `json:"is_audio"`
	IsVideoOnly    bool     `json:"is_video_only"`
	HasVideo       bool     `json:"has_video"`
	HasAudio       bool     `json:"has_audio"`
	Height         *int     `json:"height"`
	Width          *int     `json:"width"`
	FPS            *float64 `json:"fps"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
	TBR            *float64 `json:"tbr"`
	ABR            *float64 `json:"abr"`
	URL            string   `json:"url"`
}

// Catalog is the ordered list of formats for one media item.
type Catalog []Format

const (
	// BestFormatID identifies the synthesized merged video+audio format.
	BestFormatID = "best"
	// BestAudioFormatID identifies the synthesized best-audio format.
	BestAudioFormatID = "bestaudio_mp3"

	// MergedExtension is the container produced by the mux pipeline.
	MergedExtension = "mp4"

	defaultExtension = "mp4"
	codecNone        = "none"
)

func (f Format) height() int {
	if f.Height == nil {
		return 0
	}
	return *f.Height
}

func (f Format) tbr() float64 {
	if f.TBR == nil {
		return 0
	}
	return *f.TBR
}

func (f Format) abr() float64 {
	if f.ABR == nil {
		return 0
	}
	return *f.ABR
}

// category ranks combined streams first, then video-only, then audio-only.
func (f Format) category() int {
	switch {
	case f.HasVideo && f.HasAudio:
		return 0
	case f.HasVideo:
		return 1
	default:
		return 2
	}
}
