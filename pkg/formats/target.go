package formats

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const mergeScheme = "merge:"

var (
	targetRe = regexp.MustCompile(`(?i)^(https?://|merge:)`)
	httpRe   = regexp.MustCompile(`(?i)^https?://`)
)

// ErrInvalidTarget is returned for download URLs that are neither http(s)
// nor a well-formed merge reference.
var ErrInvalidTarget = errors.New("formats: invalid download url")

// Target is what a download request resolves to: either a DirectStream or a
// MergeRequest.
type Target interface {
	fmt.Stringer
	isTarget()
}

// DirectStream is a single upstream URL relayed as-is.
type DirectStream struct {
	URL string
}

func (DirectStream) isTarget() {}

func (d DirectStream) String() string { return d.URL }

// MergeRequest asks for one video-only and one audio-only format of the same
// page to be fetched separately and muxed on the fly.
type MergeRequest struct {
	VideoFormatID string
	AudioFormatID string
	WebpageURL    string
}

func (MergeRequest) isTarget() {}

// String encodes the request as merge:VIDEO+AUDIO:WEBPAGE.
func (m MergeRequest) String() string {
	return mergeScheme + m.VideoFormatID + "+" + m.AudioFormatID + ":" + m.WebpageURL
}

// ParseTarget validates a client supplied download URL and decodes merge
// references. It never touches the network.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if !targetRe.MatchString(raw) {
		return nil, ErrInvalidTarget
	}
	if !strings.EqualFold(raw[:len(mergeScheme)], mergeScheme) {
		return DirectStream{URL: raw}, nil
	}

	ids, webpage, ok := strings.Cut(raw[len(mergeScheme):], ":")
	if !ok {
		return nil, fmt.Errorf("%w: missing webpage reference", ErrInvalidTarget)
	}
	video, audio, ok := strings.Cut(ids, "+")
	video, audio = strings.TrimSpace(video), strings.TrimSpace(audio)
	if !ok || video == "" || audio == "" || strings.Contains(audio, "+") {
		return nil, fmt.Errorf("%w: expected VIDEO+AUDIO format ids", ErrInvalidTarget)
	}
	if !httpRe.MatchString(webpage) {
		return nil, fmt.Errorf("%w: webpage reference must be http(s)", ErrInvalidTarget)
	}

	return MergeRequest{
		VideoFormatID: video,
		AudioFormatID: audio,
		WebpageURL:    webpage,
	}, nil
}
