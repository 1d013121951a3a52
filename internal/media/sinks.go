//////////////////////////////////////////////////////////////////////////////
//
// Live capture sinks
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"io"

	"github.com/lanikai/alohacap/internal/wav"
)

// MediaSink is the byte destination of one stream under construction.
// Bytes must return a copy that does not alias the sink.
type MediaSink interface {
	io.Writer
	io.WriterAt

	Len() int
	Bytes() []byte
}

// AudioSink encodes PCM samples into a WAV stream held by a MediaSink.
type AudioSink struct {
	buf MediaSink
	enc *wav.Encoder
}

func NewAudioSink(buf MediaSink, format wav.Format) *AudioSink {
	return &AudioSink{buf: buf, enc: wav.NewEncoder(buf, format)}
}

// Write appends raw PCM. The header is not sealed.
func (s *AudioSink) Write(p []byte) (int, error) {
	if err := s.enc.WriteFrames(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Sync seals the header with the current length but keeps the sink writable.
func (s *AudioSink) Sync() error {
	return s.enc.Sync()
}

// Close seals the header for good.
func (s *AudioSink) Close() error {
	return s.enc.Close()
}

// Len returns the number of PCM bytes accepted, excluding the header.
func (s *AudioSink) Len() int {
	return int(s.enc.DataLen())
}

// Bytes returns a copy of the WAV stream as written so far.
func (s *AudioSink) Bytes() []byte {
	return s.buf.Bytes()
}

// VideoSink holds a raw elementary stream. No framing is imposed.
type VideoSink struct {
	buf MediaSink
}

func NewVideoSink(buf MediaSink) *VideoSink {
	return &VideoSink{buf: buf}
}

func (s *VideoSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *VideoSink) Len() int {
	return s.buf.Len()
}

func (s *VideoSink) Bytes() []byte {
	return s.buf.Bytes()
}
