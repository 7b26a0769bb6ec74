package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"thirdcoast.systems/anyvid/pkg/process"
)

// Process is a running ffmpeg whose stdout is read through Output.
type Process struct {
	*process.Process
	stdout    *os.File
	closeOnce sync.Once
}

// Output is the read end of the process stdout. It stays readable after the
// process exits until CloseOutput, so buffered tail bytes are never lost.
func (p *Process) Output() io.Reader {
	return p.stdout
}

// CloseOutput releases the stdout pipe. Safe to call more than once.
func (p *Process) CloseOutput() error {
	var err error
	p.closeOnce.Do(func() {
		if p.stdout != nil {
			err = p.stdout.Close()
		}
	})
	return err
}

// Start starts binary (DefaultBinary when empty) and returns a Process handle
// for lifecycle management. The caller is responsible for calling Wait() or
// Kill() and CloseOutput() to clean up.
func Start(ctx context.Context, binary string, args []string) (*Process, error) {
	if binary == "" {
		binary = DefaultBinary
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: failed to create stdout pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = stdoutW

	proc, err := process.Start(cmd, func(err error, stderr string) error {
		return &Error{Args: args, Stderr: stderr, Err: err}
	})
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("ffmpeg: failed to start: %w", err)
	}
	// The child holds its own copy of the write end; EOF arrives when it exits.
	stdoutW.Close()

	return &Process{Process: proc, stdout: stdoutR}, nil
}

// Error represents an ffmpeg execution error with context.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	// Extract just the last few lines of stderr for the error message
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	var lastLines string
	if len(lines) > 3 {
		lastLines = strings.Join(lines[len(lines)-3:], "\n")
	} else {
		lastLines = strings.Join(lines, "\n")
	}

	if lastLines != "" {
		return fmt.Sprintf("ffmpeg: %v: %s", e.Err, lastLines)
	}
	return fmt.Sprintf("ffmpeg: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsBrokenPipe reports whether stderr shows the process died writing to a
// closed reader, which is what a client disconnect looks like.
func IsBrokenPipe(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "broken pipe") || strings.Contains(s, "epipe")
}
