package wav

import (
	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/packet"
)

// ErrInvalid is the cause of all errors returned by Decode.
var ErrInvalid = errors.New("wav: invalid stream")

// Decode parses a complete WAV stream and returns its format and the raw
// sample bytes of the data chunk. Chunks other than "fmt " and "data" are
// skipped. The returned samples alias b.
func Decode(b []byte) (Format, []byte, error) {
	var f Format
	r := packet.NewReader(b, byteOrder)

	if err := r.CheckRemaining(12); err != nil {
		return f, nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if tag := r.ReadString(4); tag != "RIFF" {
		return f, nil, errors.Wrapf(ErrInvalid, "bad RIFF tag %q", tag)
	}
	r.Skip(4)
	if tag := r.ReadString(4); tag != "WAVE" {
		return f, nil, errors.Wrapf(ErrInvalid, "bad WAVE tag %q", tag)
	}

	haveFormat := false
	for r.Remaining() >= 8 {
		id := r.ReadString(4)
		size := int(r.ReadUint32())

		switch id {
		case "fmt ":
			if size < 16 || r.CheckRemaining(size) != nil {
				return f, nil, errors.Wrapf(ErrInvalid, "short fmt chunk (%d bytes)", size)
			}
			chunk := packet.NewReader(r.ReadSlice(size), byteOrder)
			if tag := chunk.ReadUint16(); tag != formatPCM {
				return f, nil, errors.Wrapf(ErrInvalid, "unsupported format tag %d", tag)
			}
			f.Channels = chunk.ReadUint16()
			f.SampleRate = chunk.ReadUint32()
			chunk.Skip(6) // byte rate, block align
			f.SampleWidth = chunk.ReadUint16() / 8
			haveFormat = true

		case "data":
			if !haveFormat {
				return f, nil, errors.Wrap(ErrInvalid, "data chunk before fmt chunk")
			}
			if r.Remaining() < size {
				// Tolerate truncated streams, as most readers do.
				size = r.Remaining()
			}
			return f, r.ReadSlice(size), nil

		default:
			if r.Remaining() < size {
				size = r.Remaining()
			}
			r.Skip(size)
		}
		r.Align(2)
	}

	return f, nil, errors.Wrap(ErrInvalid, "missing data chunk")
}
