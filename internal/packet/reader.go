package packet

import (
	"encoding/binary"
	"fmt"
)

// Reader decodes fixed-width fields from a byte slice. Callers are expected to
// CheckRemaining before reading; reads past the end panic.
type Reader struct {
	buffer []byte
	offset int
	order  binary.ByteOrder
}

func NewReader(buffer []byte, order binary.ByteOrder) *Reader {
	return &Reader{buffer, 0, order}
}

func (r *Reader) ReadUint16() uint16 {
	v := r.order.Uint16(r.buffer[r.offset:])
	r.offset += 2
	return v
}

func (r *Reader) ReadUint32() uint32 {
	v := r.order.Uint32(r.buffer[r.offset:])
	r.offset += 4
	return v
}

func (r *Reader) ReadSlice(n int) []byte {
	v := r.buffer[r.offset : r.offset+n]
	r.offset += n
	return v
}

func (r *Reader) ReadString(n int) string {
	return string(r.ReadSlice(n))
}

func (r *Reader) Skip(n int) {
	r.offset += n
}

// Discard bytes up to the next multiple of width, e.g. Align(2) skips the pad
// byte after an odd-sized RIFF chunk.
func (r *Reader) Align(width int) {
	r.offset = width * ((r.offset + width - 1) / width)
	if r.offset > len(r.buffer) {
		r.offset = len(r.buffer)
	}
}

func (r *Reader) ReadRemaining() []byte {
	v := r.buffer[r.offset:]
	r.offset += len(v)
	return v
}

// Return the number of bytes left in the buffer.
func (r *Reader) Remaining() int {
	return len(r.buffer) - r.offset
}

// Return the current read position.
func (r *Reader) Offset() int {
	return r.offset
}

func (r *Reader) CheckRemaining(needed int) error {
	if r.Remaining() < needed {
		return fmt.Errorf("%d bytes remaining, %d needed", r.Remaining(), needed)
	}
	return nil
}
