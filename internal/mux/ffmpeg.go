package mux

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/logging"
)

// Maximum number of diagnostic bytes kept from a failed run.
const maxDiagnostics = 8 * 1024

// FFmpeg muxes by running the ffmpeg command line tool: the video is copied,
// the audio transcoded.
type FFmpeg struct {
	// Path or name of the executable. Defaults to "ffmpeg".
	Binary string

	// Demuxer for the raw video input. Defaults to "h264".
	VideoFormat string

	// Output audio codec. Defaults to "aac".
	AudioCodec string

	// Extra arguments inserted before the output path.
	ExtraArgs []string
}

func (f *FFmpeg) binary() string {
	if f.Binary == "" {
		return "ffmpeg"
	}
	return f.Binary
}

// Args returns the command line arguments for req, excluding the binary.
func (f *FFmpeg) Args(req Request) []string {
	videoFormat := f.VideoFormat
	if videoFormat == "" {
		videoFormat = "h264"
	}
	audioCodec := f.AudioCodec
	if audioCodec == "" {
		audioCodec = "aac"
	}

	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}
	if req.VideoPath != "" {
		args = append(args, "-f", videoFormat, "-i", req.VideoPath)
	}
	args = append(args, "-i", req.AudioPath)
	if req.VideoPath != "" {
		args = append(args, "-map", "0:v:0", "-map", "1:a:0", "-c:v", "copy")
	}
	args = append(args, "-c:a", audioCodec)
	args = append(args, f.ExtraArgs...)
	return append(args, req.OutputPath)
}

// Combine runs ffmpeg and waits for it to exit. Cancelling ctx kills the
// process.
func (f *FFmpeg) Combine(ctx context.Context, req Request) error {
	if req.AudioPath == "" || req.OutputPath == "" {
		return errors.New("mux: audio and output paths are required")
	}

	var out tailBuffer
	cmd := exec.CommandContext(ctx, f.binary(), f.Args(req)...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if log.Enabled(logging.Debug) {
		log.Debug("Running %s %s", cmd.Path, strings.Join(cmd.Args[1:], " "))
	}
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		log.Info("Muxed %s in %v", req.OutputPath, elapsed.Round(time.Millisecond))
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Wrapf(ctxErr, "encoder stopped after %v", elapsed.Round(time.Millisecond))
	}

	log.Warn("Encoder failed (status %d): %v: %s", exitCode, err, bytes.TrimSpace(out.Bytes()))
	return &Error{ExitCode: exitCode, Output: out.Bytes(), Err: err}
}

// tailBuffer keeps the last maxDiagnostics bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > maxDiagnostics {
		p = p[len(p)-maxDiagnostics:]
	}
	if over := t.buf.Len() + len(p) - maxDiagnostics; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	return append([]byte(nil), t.buf.Bytes()...)
}
