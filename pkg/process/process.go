// Package process supervises child processes started by the ytdlp and
// ffmpeg packages: one goroutine reaps the child, Exited turns true before
// Done closes, and stderr is captured for error reporting.
package process

import (
	"bytes"
	"io"
	"os/exec"
	"sync/atomic"
	"time"
)

// WaitDelay bounds how long Wait lingers on output held open by grandchildren.
const WaitDelay = 2 * time.Second

// Process is a started child process.
type Process struct {
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
	exited atomic.Bool
	stderr bytes.Buffer
}

// Start starts cmd and reaps it in the background. Anything already set as
// cmd.Stderr still receives the stream; a copy is kept for Stderr. When wrap
// is set it converts a failed exit into the caller's error type.
func Start(cmd *exec.Cmd, wrap func(err error, stderr string) error) (*Process, error) {
	p := &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	if cmd.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&p.stderr, cmd.Stderr)
	} else {
		cmd.Stderr = &p.stderr
	}
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = WaitDelay
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go func() {
		defer close(p.done)
		err := cmd.Wait()
		p.exited.Store(true)
		if err != nil && wrap != nil {
			err = wrap(err, p.stderr.String())
		}
		p.err = err
	}()

	return p, nil
}

// Wait blocks until the process exits and returns its error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Kill sends SIGKILL. Killing a process that already exited is a no-op.
func (p *Process) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil || p.exited.Load() {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Done closes when the process has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has been reaped.
func (p *Process) Exited() bool {
	return p.exited.Load()
}

// Stderr returns the captured stderr once the process has exited.
func (p *Process) Stderr() string {
	select {
	case <-p.done:
		return p.stderr.String()
	default:
		return ""
	}
}
