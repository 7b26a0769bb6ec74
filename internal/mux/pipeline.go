// Package mux streams a merged download: two producers write one video and
// one audio format into named pipes and a muxer turns them into a single
// fragmented MP4 on its stdout.
package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/anyvid/pkg/formats"
)

// Process is a child process owned by a Session.
type Process interface {
	Wait() error
	Done() <-chan struct{}
	Kill() error
	Exited() bool
	Stderr() string
}

// MuxProcess is the muxer: a Process whose stdout carries the merged stream.
type MuxProcess interface {
	Process
	Output() io.Reader
	CloseOutput() error
}

// ProducerLauncher starts a process that writes formatID of webpageURL to dest.
type ProducerLauncher interface {
	StartProducer(ctx context.Context, formatID, webpageURL, dest string) (Process, error)
}

// MuxerLauncher starts a muxer reading the two pipes.
type MuxerLauncher interface {
	StartMuxer(ctx context.Context, videoPipe, audioPipe string) (MuxProcess, error)
}

// Error reports which stage of the pipeline failed.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mux: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	StagePipes    = "pipes"
	StageProducer = "producer"
	StageMuxer    = "muxer"
	StageRelay    = "relay"

	defaultChunkSize = 64 * 1024
)

// Options configure a Pipeline. Zero values fall back to the OS temp dir,
// a 5 second grace period and 64 KiB chunks.
type Options struct {
	ScratchDir  string
	GracePeriod time.Duration
	ChunkSize   int
}

// Pipeline creates mux sessions.
type Pipeline struct {
	producers ProducerLauncher
	muxer     MuxerLauncher
	opts      Options
}

func NewPipeline(producers ProducerLauncher, muxer MuxerLauncher, opts Options) *Pipeline {
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 5 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	return &Pipeline{producers: producers, muxer: muxer, opts: opts}
}

// Start creates the pipes and launches both producers and the muxer. On
// error everything already started has been torn down. On success the
// caller must Relay and/or Close the session.
func (p *Pipeline) Start(ctx context.Context, req formats.MergeRequest) (*Session, error) {
	id := uuid.NewString()
	// Teardown, not the request context, ends the children.
	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		ID:        id,
		request:   req,
		videoPipe: filepath.Join(p.opts.ScratchDir, "vid_"+id+".pipe"),
		audioPipe: filepath.Join(p.opts.ScratchDir, "aud_"+id+".pipe"),
		grace:     p.opts.GracePeriod,
		chunkSize: p.opts.ChunkSize,
		cancel:    cancel,
	}
	s.state.Store(int32(StateCreated))

	log := slog.With("session", id, "video", req.VideoFormatID, "audio", req.AudioFormatID)

	if err := makeFifo(s.videoPipe); err != nil {
		s.teardown(true, StateFailed)
		return nil, &Error{Stage: StagePipes, Err: err}
	}
	s.pipesCreated = 1
	if err := makeFifo(s.audioPipe); err != nil {
		s.teardown(true, StateFailed)
		return nil, &Error{Stage: StagePipes, Err: err}
	}
	s.pipesCreated = 2
	s.setState(StatePipesReady)

	audio, err := p.producers.StartProducer(procCtx, req.AudioFormatID, req.WebpageURL, s.audioPipe)
	if err != nil {
		s.teardown(true, StateFailed)
		return nil, &Error{Stage: StageProducer, Err: err}
	}
	s.audio = audio

	video, err := p.producers.StartProducer(procCtx, req.VideoFormatID, req.WebpageURL, s.videoPipe)
	if err != nil {
		s.teardown(true, StateFailed)
		return nil, &Error{Stage: StageProducer, Err: err}
	}
	s.video = video
	s.setState(StateProducersRunning)

	muxer, err := p.muxer.StartMuxer(procCtx, s.videoPipe, s.audioPipe)
	if err != nil {
		s.teardown(true, StateFailed)
		log.Error("mux: muxer failed to start", "error", err)
		return nil, &Error{Stage: StageMuxer, Err: err}
	}
	s.muxer = muxer
	s.setState(StateMuxing)

	log.Info("mux: session started", "webpage", req.WebpageURL)
	return s, nil
}

// errAlreadyClosed is returned by Relay on a session that was torn down.
var errAlreadyClosed = errors.New("mux: session already closed")
