package wav

import (
	"io"

	"github.com/pkg/errors"
)

// ErrClosed is returned when writing to an Encoder after Close.
var ErrClosed = errors.New("wav: encoder closed")

// ErrTooLong is returned when a write would overflow the RIFF size fields.
var ErrTooLong = errors.New("wav: stream exceeds 4 GiB")

// Sink is the byte destination of an Encoder. Samples are appended with Write;
// the header is patched with WriteAt.
type Sink interface {
	io.Writer
	io.WriterAt
}

// Encoder incrementally writes PCM samples to a Sink as a WAV stream.
//
// Until the first call to WriteFrames or Sync, nothing is written to the sink.
// After Sync or Close the sink holds a valid WAV stream. Every byte passed to
// WriteFrames lands in the data chunk, and the chunk length is the exact byte
// count even when it ends mid-sample. Close appends the RIFF pad byte after an
// odd-length data chunk.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	w      Sink
	format Format

	headerWritten bool
	dataLen       uint32
	closed        bool
}

// NewEncoder returns an encoder writing f-formatted samples to w. Panics on a
// zero-valued format field.
func NewEncoder(w Sink, f Format) *Encoder {
	if err := f.validate(); err != nil {
		panic(err)
	}
	return &Encoder{w: w, format: f}
}

func (e *Encoder) Format() Format {
	return e.format
}

// DataLen returns the number of sample bytes written so far.
func (e *Encoder) DataLen() uint32 {
	return e.dataLen
}

// WriteFrames appends raw interleaved PCM. It never seals the header.
func (e *Encoder) WriteFrames(p []byte) error {
	if e.closed {
		return ErrClosed
	}
	if len(p) == 0 {
		return nil
	}
	if uint64(e.dataLen)+uint64(len(p)) > maxDataLen {
		return ErrTooLong
	}
	if err := e.writeHeader(); err != nil {
		return err
	}

	n, err := e.w.Write(p)
	e.dataLen += uint32(n)
	if err != nil {
		return errors.Wrap(err, "wav: write samples")
	}
	return nil
}

func (e *Encoder) writeHeader() error {
	if e.headerWritten {
		return nil
	}
	if _, err := e.w.Write(header(e.format, 0, 0)); err != nil {
		return errors.Wrap(err, "wav: write header")
	}
	e.headerWritten = true
	return nil
}

// Sync patches the header with the current data length. The encoder remains
// open. On a fresh encoder this writes a header for an empty stream.
func (e *Encoder) Sync() error {
	if !e.headerWritten {
		return e.writeHeader()
	}
	return e.patch(0)
}

func (e *Encoder) patch(pad uint32) error {
	if _, err := e.w.WriteAt(header(e.format, e.dataLen, pad), 0); err != nil {
		return errors.Wrap(err, "wav: patch header")
	}
	return nil
}

// Close seals the stream. Closing an already closed encoder is a no-op.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if !e.headerWritten {
		return e.writeHeader()
	}

	var pad uint32
	if e.dataLen%2 == 1 {
		if _, err := e.w.Write([]byte{0}); err != nil {
			return errors.Wrap(err, "wav: write pad byte")
		}
		pad = 1
	}
	return e.patch(pad)
}
