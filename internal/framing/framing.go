// Package framing decodes the device's inbound websocket messages into typed
// media packets.
//
// Two framings exist in the field. Explicit framing sends a one-byte type tag
// message ahead of every payload message:
//
//	[0x01] [PCM samples...]
//	[0x02] [video bytes...]
//
// Alternating framing sends bare payloads and relies on the device strictly
// alternating audio, video, audio, ... One lost or reordered message swaps the
// two streams for the rest of the connection, so it is only kept for older
// firmware.
package framing

import (
	"strings"
	"sync/atomic"

	errors "golang.org/x/xerrors"
)

// Kind identifies the media stream a packet belongs to.
type Kind byte

const (
	Audio Kind = 0x01
	Video Kind = 0x02
)

func (k Kind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// Packet is one decoded media payload.
type Packet struct {
	Kind    Kind
	Payload []byte
}

// A FrameReader yields successive transport messages.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

// FrameReaderFunc adapts a function to the FrameReader interface.
type FrameReaderFunc func() ([]byte, error)

func (f FrameReaderFunc) ReadFrame() ([]byte, error) {
	return f()
}

// A Framer turns transport messages into packets.
type Framer interface {
	// ReadPacket consumes as many frames from r as one packet needs. Errors
	// from r are returned unchanged.
	ReadPacket(r FrameReader) (Packet, error)

	// Reset returns the framer to its initial state.
	Reset()

	Mode() Mode
}

// Mode selects a framing.
type Mode int

const (
	ModeExplicit Mode = iota
	ModeAlternating
)

func (m Mode) String() string {
	switch m {
	case ModeExplicit:
		return "explicit"
	case ModeAlternating:
		return "alternating"
	default:
		return "invalid"
	}
}

// ParseMode parses "explicit" or "alternating".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "explicit":
		return ModeExplicit, nil
	case "alternating", "implicit":
		return ModeAlternating, nil
	}
	return 0, errors.Errorf("unknown framing mode %q", s)
}

// New returns a fresh Framer for the given mode.
func New(m Mode) Framer {
	if m == ModeAlternating {
		return &Alternating{}
	}
	return &Explicit{}
}

// Explicit decodes tag-prefixed framing. It is stateless.
type Explicit struct{}

func (*Explicit) Mode() Mode { return ModeExplicit }

func (*Explicit) Reset() {}

func (*Explicit) ReadPacket(r FrameReader) (Packet, error) {
	hdr, err := r.ReadFrame()
	if err != nil {
		return Packet{}, err
	}
	if len(hdr) != 1 {
		return Packet{}, &MalformedHeaderError{Header: hdr}
	}
	kind := Kind(hdr[0])
	if kind != Audio && kind != Video {
		return Packet{}, &MalformedHeaderError{Header: hdr}
	}

	payload, err := r.ReadFrame()
	if err != nil {
		return Packet{}, err
	}
	return Packet{Kind: kind, Payload: payload}, nil
}

// Alternating decodes bare payloads by position: even frames are audio, odd
// frames are video. Reset may be called concurrently with ReadPacket.
type Alternating struct {
	// Set when the next frame is video.
	video atomic.Bool
}

func (*Alternating) Mode() Mode { return ModeAlternating }

func (f *Alternating) Reset() {
	f.video.Store(false)
}

func (f *Alternating) ReadPacket(r FrameReader) (Packet, error) {
	payload, err := r.ReadFrame()
	if err != nil {
		return Packet{}, err
	}
	return Packet{Kind: f.next(), Payload: payload}, nil
}

// next returns the kind of the current frame and advances the toggle.
func (f *Alternating) next() Kind {
	for {
		video := f.video.Load()
		if f.video.CompareAndSwap(video, !video) {
			if video {
				return Video
			}
			return Audio
		}
	}
}
