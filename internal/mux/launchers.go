package mux

import (
	"context"
	"fmt"

	"thirdcoast.systems/anyvid/pkg/ffmpeg"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

// YtdlpProducers fetches single formats with yt-dlp.
type YtdlpProducers struct {
	Client *ytdlp.Client
}

func (y YtdlpProducers) StartProducer(ctx context.Context, formatID, webpageURL, dest string) (Process, error) {
	proc, err := y.Client.StartFormatStream(ctx, formatID, webpageURL, dest)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

// FFmpegMuxer remuxes the two pipes into fragmented MP4 without re-encoding.
type FFmpegMuxer struct {
	// Binary is the ffmpeg path; empty means PATH lookup of "ffmpeg".
	Binary string
}

func (f FFmpegMuxer) StartMuxer(ctx context.Context, videoPipe, audioPipe string) (MuxProcess, error) {
	path, err := ffmpeg.LookPath(f.Binary)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	proc, err := ffmpeg.FragmentedMP4(videoPipe, audioPipe).Start(ctx, path)
	if err != nil {
		return nil, err
	}
	return proc, nil
}
