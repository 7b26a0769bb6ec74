package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"thirdcoast.systems/anyvid/pkg/ffmpeg"
	"thirdcoast.systems/anyvid/pkg/formats"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateCreated State = iota
	StatePipesReady
	StateProducersRunning
	StateMuxing
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePipesReady:
		return "pipes_ready"
	case StateProducersRunning:
		return "producers_running"
	case StateMuxing:
		return "muxing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Session owns two pipes and three processes for one merged download.
// Teardown runs exactly once, whichever exit path reaches it first.
type Session struct {
	ID string

	request      formats.MergeRequest
	videoPipe    string
	audioPipe    string
	pipesCreated int

	video Process
	audio Process
	muxer MuxProcess

	grace     time.Duration
	chunkSize int
	cancel    context.CancelFunc

	state    atomic.Int32
	once     sync.Once
	err      error
	relaying atomic.Bool
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Pipes returns the video and audio pipe paths.
func (s *Session) Pipes() (video, audio string) {
	return s.videoPipe, s.audioPipe
}

// Relay copies the muxer output to w in chunks, flushing after each write
// when w is an http.Flusher, then tears the session down. Cancelling ctx
// tears the session down immediately.
func (s *Session) Relay(ctx context.Context, w io.Writer) error {
	if s.State().Terminal() || !s.relaying.CompareAndSwap(false, true) {
		return errAlreadyClosed
	}

	stop := context.AfterFunc(ctx, func() {
		s.teardown(true, StateCancelled)
	})
	defer stop()

	flusher, _ := w.(http.Flusher)
	out := s.muxer.Output()
	buf := make([]byte, s.chunkSize)
	var written int64

	for {
		n, readErr := out.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				slog.Info("mux: client stopped reading", "session", s.ID, "bytes", written, "error", err)
				s.teardown(true, StateCancelled)
				return &Error{Stage: StageRelay, Err: err}
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			err := s.teardown(false, StateCompleted)
			if err == nil && ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Info("mux: relay finished", "session", s.ID, "bytes", written, "state", s.State())
			return err
		}
		if readErr != nil {
			if ctx.Err() != nil {
				s.teardown(true, StateCancelled)
				return ctx.Err()
			}
			s.teardown(true, StateFailed)
			return &Error{Stage: StageRelay, Err: readErr}
		}
	}
}

// Close tears the session down, killing anything still running. It is safe
// to call after Relay and from several goroutines.
func (s *Session) Close() error {
	return s.teardown(true, StateCancelled)
}

// teardown is the single cleanup routine. kill forces every process down
// first; otherwise the muxer is given the grace period to exit on its own.
// final is the state recorded unless the muxer turns out to have failed.
func (s *Session) teardown(kill bool, final State) error {
	s.once.Do(func() {
		log := slog.With("session", s.ID, "webpage", s.request.WebpageURL)

		if kill {
			for _, p := range s.processes() {
				if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
					log.Debug("mux: kill failed", "error", err)
				}
			}
		}

		if s.muxer != nil {
			muxErr := waitOrKill(s.muxer, s.grace)
			if muxErr != nil && !kill {
				stderr := s.muxer.Stderr()
				if !ffmpeg.IsBrokenPipe(stderr) {
					log.Error("mux: muxer failed", "error", muxErr, "stderr", stderr)
					s.err = &Error{Stage: StageMuxer, Err: muxErr}
					final = StateFailed
				}
			}
			s.muxer.CloseOutput()
		}

		for name, p := range map[string]Process{"video": s.video, "audio": s.audio} {
			if p == nil {
				continue
			}
			if err := waitOrKill(p, s.grace); err != nil && !kill {
				log.Warn("mux: producer exited with error", "stream", name, "error", err, "stderr", p.Stderr())
			}
		}

		s.removePipes(log)
		s.cancel()
		s.setState(final)
		log.Info("mux: session closed", "state", final)
	})
	return s.err
}

func (s *Session) processes() []Process {
	procs := make([]Process, 0, 3)
	if s.muxer != nil {
		procs = append(procs, s.muxer)
	}
	if s.video != nil {
		procs = append(procs, s.video)
	}
	if s.audio != nil {
		procs = append(procs, s.audio)
	}
	return procs
}

func (s *Session) removePipes(log *slog.Logger) {
	paths := []string{s.videoPipe, s.audioPipe}[:s.pipesCreated]
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("mux: failed to remove pipe", "path", path, "error", err)
		}
	}
}

// waitOrKill reaps p, killing it if it has not exited within grace.
func waitOrKill(p Process, grace time.Duration) error {
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.Done():
	case <-timer.C:
		p.Kill()
	}
	return p.Wait()
}
