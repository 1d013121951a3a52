package framing

import (
	"encoding/binary"
	"fmt"
	"io"

	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohacap/internal/packet"
)

// ErrTruncatedFrame is returned when a length prefix promises more bytes than
// remain.
var ErrTruncatedFrame = errors.New("truncated frame")

const prefixSize = 4

// LengthPrefixed reads frames stored back to back, each preceded by its size
// as a little-endian uint32. This is the layout of a video file recorded to SD
// card by the device and uploaded later.
type LengthPrefixed struct {
	r *packet.Reader
}

func NewLengthPrefixed(b []byte) *LengthPrefixed {
	return &LengthPrefixed{packet.NewReader(b, binary.LittleEndian)}
}

// ReadFrame returns the next frame, or io.EOF once the input is consumed.
func (l *LengthPrefixed) ReadFrame() ([]byte, error) {
	if l.r.Remaining() == 0 {
		return nil, io.EOF
	}
	offset := l.r.Offset()
	if err := l.r.CheckRemaining(prefixSize); err != nil {
		return nil, fmt.Errorf("%w at offset %d: %v", ErrTruncatedFrame, offset, err)
	}
	size := int(l.r.ReadUint32())
	if err := l.r.CheckRemaining(size); err != nil {
		return nil, fmt.Errorf("%w at offset %d: %v", ErrTruncatedFrame, offset, err)
	}
	return l.r.ReadSlice(size), nil
}
