package formats

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

type dedupKey struct {
	label     string
	extension string
}

func keyOf(f Format) dedupKey {
	return dedupKey{label: f.Label, extension: f.Extension}
}

// BuildCatalog normalizes, deduplicates and ranks raw descriptors, then adds
// the synthesized "best" (merged) and "bestaudio_mp3" entries when possible.
// The audio-only stream picked for "bestaudio_mp3" is listed only once, under
// the synthesized entry, and no other entry shares its label and extension.
// webpageURL is the reference the mux pipeline re-extracts from; without it
// no merged entry is produced.
func BuildCatalog(raw []ytdlp.RawFormat, webpageURL string) Catalog {
	normalized := lo.FilterMap(raw, func(r ytdlp.RawFormat, _ int) (Format, bool) {
		return Normalize(r)
	})

	catalog := lo.UniqBy(normalized, keyOf)

	slices.SortStableFunc(catalog, compareRank)

	if best, ok := mergedBest(catalog, webpageURL); ok {
		catalog = append([]Format{best}, catalog...)
	}
	if audio, source, ok := bestAudio(catalog); ok {
		catalog = slices.Delete(catalog, source, source+1)
		// A raw mp3 stream at the same bitrate would repeat the entry.
		catalog = slices.DeleteFunc(catalog, func(f Format) bool {
			return keyOf(f) == keyOf(audio)
		})
		catalog = append(catalog, audio)
	}

	return catalog
}

// compareRank orders by category, then height, total bitrate and audio
// bitrate, all descending. Missing values rank as zero.
func compareRank(a, b Format) int {
	if c := cmp.Compare(a.category(), b.category()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.height(), a.height()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.tbr(), a.tbr()); c != 0 {
		return c
	}
	return cmp.Compare(b.abr(), a.abr())
}

func mergedBest(catalog Catalog, webpageURL string) (Format, bool) {
	webpageURL = strings.TrimSpace(webpageURL)
	if webpageURL == "" {
		return Format{}, false
	}

	videoOnly := lo.Filter(catalog, func(f Format, _ int) bool { return f.IsVideoOnly && f.FormatID != "" })
	audioOnly := lo.Filter(catalog, func(f Format, _ int) bool { return f.IsAudio && f.FormatID != "" })
	if len(videoOnly) == 0 || len(audioOnly) == 0 {
		return Format{}, false
	}

	video := lo.MaxBy(videoOnly, func(a, b Format) bool {
		if a.height() != b.height() {
			return a.height() > b.height()
		}
		return a.tbr() > b.tbr()
	})
	audio := lo.MaxBy(audioOnly, func(a, b Format) bool {
		return a.abr() > b.abr()
	})

	quality := "Best"
	if video.Height != nil {
		quality = HeightTier(*video.Height)
	}

	ref := MergeRequest{
		VideoFormatID: video.FormatID,
		AudioFormatID: audio.FormatID,
		WebpageURL:    webpageURL,
	}

	return Format{
		FormatID:  BestFormatID,
		Label:     fmt.Sprintf("Best Quality (Merged) %s", strings.ToUpper(MergedExtension)),
		Quality:   quality,
		Extension: MergedExtension,
		HasVideo:  true,
		HasAudio:  true,
		Height:    video.Height,
		Width:     video.Width,
		FPS:       video.FPS,
		VCodec:    video.VCodec,
		ACodec:    audio.ACodec,
		URL:       ref.String(),
	}, true
}

// bestAudio picks the audio-only stream with the highest bitrate and offers
// it as an MP3 download, returning the picked stream's index as well.
// Catalogs without any audio-only stream get none.
func bestAudio(catalog Catalog) (Format, int, bool) {
	rate := func(f Format) float64 {
		if r := f.abr(); r > 0 {
			return r
		}
		return f.tbr()
	}

	source := -1
	for i, f := range catalog {
		if !f.IsAudio || f.FormatID == BestFormatID {
			continue
		}
		if source < 0 || rate(f) > rate(catalog[source]) {
			source = i
		}
	}
	if source < 0 {
		return Format{}, -1, false
	}
	chosen := catalog[source]

	f := Format{
		FormatID:  BestAudioFormatID,
		Label:     "Audio MP3",
		Quality:   "Audio",
		Extension: "mp3",
		IsAudio:   true,
		HasAudio:  true,
		URL:       chosen.URL,
	}
	if r := rate(chosen); r > 0 {
		rounded := math.Round(r)
		f.Label = fmt.Sprintf("Audio MP3 (%s)", kbps(r))
		f.Quality = kbps(r)
		f.ABR = &rounded
	}
	return f, source, true
}
