// Package ffmpeg provides a composable API for building and executing ffmpeg commands.
package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
)

// DefaultBinary is the executable looked up on PATH when no path is configured.
const DefaultBinary = "ffmpeg"

// PipeOutput writes the muxed output to the process stdout.
const PipeOutput = "pipe:1"

// Command represents an ffmpeg command being built.
type Command struct {
	inputs    []string
	output    string
	preInput  []string // args before the first -i
	postInput []string // args after the last -i
	movflags  []string
}

// Option modifies a Command. Options are composable and order-independent
// (ffmpeg will receive args in correct order regardless of option order).
type Option interface {
	Apply(cmd *Command)
}

// OptionFunc is a function that implements Option.
type OptionFunc func(cmd *Command)

// Apply implements Option.
func (f OptionFunc) Apply(cmd *Command) { f(cmd) }

// NewCommand creates a command reading every input in order and writing output.
func NewCommand(inputs []string, output string, opts ...Option) *Command {
	cmd := &Command{
		inputs: inputs,
		output: output,
	}
	for _, opt := range opts {
		opt.Apply(cmd)
	}
	return cmd
}

// Build returns the complete ffmpeg argument list.
func (c *Command) Build() []string {
	args := []string{"-hide_banner"}
	args = append(args, c.preInput...)
	args = append(args, "-y")

	for _, in := range c.inputs {
		args = append(args, "-i", in)
	}

	args = append(args, c.postInput...)

	if len(c.movflags) > 0 {
		args = append(args, "-movflags", strings.Join(c.movflags, "+"))
	}

	return append(args, c.output)
}

// Start launches binary with the built arguments. An empty binary means
// DefaultBinary. The caller must Wait or Kill the returned process.
func (c *Command) Start(ctx context.Context, binary string) (*Process, error) {
	return Start(ctx, binary, c.Build())
}

// LookPath resolves binary (or DefaultBinary) to an executable path.
func LookPath(binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	return exec.LookPath(binary)
}

// --- Stream Options ---

// CopyAll copies all streams without re-encoding (-c copy).
var CopyAll Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-c", "copy")
})

// MapStream maps a specific stream (-map {spec}).
func MapStream(spec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-map", spec)
	})
}

// --- Output Options ---

// OutputFormat forces the container format (-f), required when writing to a pipe.
func OutputFormat(name string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-f", name)
	})
}

// MovFlags sets -movflags. Fragmented output for pipes needs
// MovFlags("frag_keyframe", "empty_moov").
func MovFlags(flags ...string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.movflags = append(cmd.movflags, flags...)
	})
}

// --- Misc ---

// LogLevel sets the logging level.
func LogLevel(level string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.preInput = append([]string{"-loglevel", level}, cmd.preInput...)
	})
}

// ExtraArgs adds raw arguments (escape hatch for unsupported options).
func ExtraArgs(args ...string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, args...)
	})
}

// FragmentedMP4 remuxes a video input and an audio input into fragmented MP4
// on stdout without re-encoding.
func FragmentedMP4(video, audio string, opts ...Option) *Command {
	base := []Option{
		LogLevel("error"),
		MapStream("0:v:0"),
		MapStream("1:a:0"),
		CopyAll,
		MovFlags("frag_keyframe", "empty_moov"),
		OutputFormat("mp4"),
	}
	return NewCommand([]string{video, audio}, PipeOutput, append(base, opts...)...)
}
