package formats

import (
	"fmt"
	"math"
	"strings"
)

// HeightTier maps a pixel height to the conventional quality name.
func HeightTier(height int) string {
	switch {
	case height >= 2160:
		return "4K"
	case height >= 1440:
		return "1440p"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	case height >= 360:
		return "360p"
	case height >= 240:
		return "240p"
	case height >= 144:
		return "144p"
	default:
		return fmt.Sprintf("%dp", height)
	}
}

func kbps(rate float64) string {
	return fmt.Sprintf("%dkbps", int(math.Round(rate)))
}

// qualityLabel derives the short quality string ("1080p 60fps", "128kbps").
func qualityLabel(hasVideo, hasAudio bool, height *int, fps, abr, tbr *float64) string {
	switch {
	case hasVideo:
		label := "Video"
		if height != nil {
			label = HeightTier(*height)
		}
		if fps != nil && *fps > 30 {
			label += fmt.Sprintf(" %dfps", int(*fps))
		}
		return label
	case hasAudio:
		if abr != nil && *abr > 0 {
			return kbps(*abr)
		}
		if tbr != nil && *tbr > 0 {
			return kbps(*tbr)
		}
		return "Audio"
	default:
		return "Unknown"
	}
}

// displayLabel builds the human readable label shown in the format picker.
func displayLabel(quality, ext string, hasVideo, hasAudio bool) string {
	ext = strings.ToUpper(ext)
	switch {
	case hasVideo && hasAudio:
		return fmt.Sprintf("%s %s (Video + Audio)", quality, ext)
	case hasVideo:
		return fmt.Sprintf("%s %s (Video Only)", quality, ext)
	case hasAudio:
		return fmt.Sprintf("Audio %s (%s)", ext, quality)
	default:
		return fmt.Sprintf("%s %s", quality, ext)
	}
}
