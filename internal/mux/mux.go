// Package mux combines a video elementary stream and a WAV file into a single
// playable container.
package mux

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/logging"
)

var log = logging.DefaultLogger.WithTag("mux")

// Request names the inputs and output of one mux.
type Request struct {
	// Raw video elementary stream. Empty means audio only.
	VideoPath string

	// WAV file.
	AudioPath string

	// Container to create. Overwritten if it exists.
	OutputPath string
}

// A Muxer combines the streams named by a Request. Implementations return an
// *Error when the encoder itself fails.
type Muxer interface {
	Combine(ctx context.Context, req Request) error
}

// MuxerFunc adapts a function to the Muxer interface.
type MuxerFunc func(ctx context.Context, req Request) error

func (f MuxerFunc) Combine(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// ErrMuxFailed matches every *Error.
var ErrMuxFailed = errors.New("mux failed")

// Error reports a failed encoder run.
type Error struct {
	// Exit status of the encoder, or -1 if it did not exit normally.
	ExitCode int

	// Tail of the encoder's combined stdout/stderr.
	Output []byte

	// Underlying cause, e.g. *exec.ExitError or context.DeadlineExceeded.
	Err error
}

func (e *Error) Error() string {
	msg := ErrMuxFailed.Error()
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrMuxFailed }
