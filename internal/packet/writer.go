package packet

import (
	"encoding/binary"
	"fmt"
)

// Writer serializes fixed-width fields into a preallocated buffer.
type Writer struct {
	buffer []byte
	offset int
	order  binary.ByteOrder
}

// NewWriter returns a Writer over buffer using the given byte order.
func NewWriter(buffer []byte, order binary.ByteOrder) *Writer {
	return &Writer{buffer, 0, order}
}

func NewWriterSize(n int, order binary.ByteOrder) *Writer {
	return NewWriter(make([]byte, n), order)
}

func (w *Writer) WriteByte(v byte) error {
	if err := w.CheckCapacity(1); err != nil {
		return err
	}
	w.buffer[w.offset] = v
	w.offset++
	return nil
}

func (w *Writer) WriteUint16(v uint16) {
	w.order.PutUint16(w.buffer[w.offset:], v)
	w.offset += 2
}

func (w *Writer) WriteUint32(v uint32) {
	w.order.PutUint32(w.buffer[w.offset:], v)
	w.offset += 4
}

// Write the given bytes, if there is enough room.
func (w *Writer) WriteSlice(p []byte) error {
	if err := w.CheckCapacity(len(p)); err != nil {
		return err
	}
	w.offset += copy(w.buffer[w.offset:], p)
	return nil
}

// WriteTag writes a four character code, e.g. "RIFF". Panics if tag is not 4
// bytes long.
func (w *Writer) WriteTag(tag string) {
	if len(tag) != 4 {
		panic("packet: tag must be 4 bytes: " + tag)
	}
	w.offset += copy(w.buffer[w.offset:], tag)
}

// Return the number of bytes written so far.
func (w *Writer) Length() int {
	return w.offset
}

// Return the number of bytes that the underlying buffer can still hold.
func (w *Writer) Available() int {
	return len(w.buffer) - w.offset
}

func (w *Writer) CheckCapacity(needed int) error {
	if w.Available() < needed {
		return fmt.Errorf("%d bytes available, %d needed", w.Available(), needed)
	}
	return nil
}

// Return a slice of the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buffer[0:w.offset]
}

func (w *Writer) Reset() {
	w.offset = 0
}
