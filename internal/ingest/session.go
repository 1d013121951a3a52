// Package ingest runs the per-connection streaming loop.
package ingest

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/framing"
	"github.com/lanikai/alohacap/internal/logging"
)

var log = logging.DefaultLogger.WithTag("ingest")

// ErrTransportClosed is returned by a FrameReader when the peer has gone away.
// It ends a session normally.
var ErrTransportClosed = errors.New("transport closed")

// State is the lifecycle stage of a Session.
type State int32

const (
	Connecting State = iota
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}

// Sink receives decoded media. It is satisfied by *media.Accumulator.
type Sink interface {
	AppendAudio(p []byte) error
	AppendVideo(p []byte) error

	// Finalize leaves the audio stream in a valid state without detaching it.
	Finalize() error
}

// A Session routes the packets of one device connection into a Sink.
type Session struct {
	ID     string
	Framer framing.Framer
	Sink   Sink

	state       atomic.Int32
	audioFrames atomic.Uint64
	videoFrames atomic.Uint64
	started     time.Time
}

func NewSession(id string, framer framing.Framer, sink Sink) *Session {
	return &Session{ID: id, Framer: framer, Sink: sink}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Frames returns the number of audio and video packets routed so far.
func (s *Session) Frames() (audio, video uint64) {
	return s.audioFrames.Load(), s.videoFrames.Load()
}

// Run reads packets from r until the transport closes, a framing or sink error
// occurs, or ctx is cancelled. A closed transport is not an error.
//
// If r also implements io.Closer it is closed when ctx is done, to unblock a
// pending read. Run finalizes the sink before returning.
func (s *Session) Run(ctx context.Context, r framing.FrameReader) error {
	if !s.state.CompareAndSwap(int32(Connecting), int32(Streaming)) {
		return errors.Errorf("session %s: already %v", s.ID, s.State())
	}
	s.started = time.Now()
	log.Info("Session %s streaming (%v framing)", s.ID, s.Framer.Mode())

	done := make(chan struct{})
	defer close(done)
	if c, ok := r.(io.Closer); ok {
		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-done:
			}
		}()
	}

	err := s.loop(ctx, r)
	s.close(err)
	return err
}

func (s *Session) loop(ctx context.Context, r framing.FrameReader) error {
	for {
		pkt, err := s.Framer.ReadPacket(r)
		if err == nil {
			// A packet that was read is kept even if ctx ended meanwhile.
			if err := s.route(pkt); err != nil {
				return errors.Wrapf(err, "session %s", s.ID)
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrTransportClosed), errors.Is(err, io.EOF):
			return nil
		default:
			return errors.Wrapf(err, "session %s", s.ID)
		}
	}
}

func (s *Session) route(pkt framing.Packet) error {
	switch pkt.Kind {
	case framing.Audio:
		s.audioFrames.Add(1)
		return s.Sink.AppendAudio(pkt.Payload)
	case framing.Video:
		s.videoFrames.Add(1)
		return s.Sink.AppendVideo(pkt.Payload)
	}
	return nil
}

func (s *Session) close(cause error) {
	s.state.Store(int32(Closed))

	if err := s.Sink.Finalize(); err != nil {
		log.Error("Session %s: finalize audio: %v", s.ID, err)
	}

	audio, video := s.Frames()
	elapsed := time.Since(s.started).Round(time.Millisecond)
	if cause != nil {
		log.Warn("Session %s ended after %v (%d audio, %d video): %v", s.ID, elapsed, audio, video, cause)
	} else {
		log.Info("Session %s closed after %v (%d audio, %d video)", s.ID, elapsed, audio, video)
	}
}
