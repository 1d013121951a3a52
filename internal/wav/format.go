// Package wav writes and reads canonical PCM WAV streams.
//
// The encoder is incremental: the header is written with a placeholder length
// on the first frames and patched in place when the stream is sealed, so the
// underlying sink only needs to support appends and positional writes.
package wav

import (
	"encoding/binary"
	"fmt"

	"github.com/lanikai/alohacap/internal/packet"
)

// HeaderSize is the size of the canonical RIFF/WAVE header written by Encoder.
const HeaderSize = 44

const (
	formatPCM = 1

	// Largest data chunk representable in the 32-bit RIFF size field, leaving
	// room for the pad byte.
	maxDataLen = 1<<32 - 1 - (HeaderSize - 8) - 1
)

var byteOrder = binary.LittleEndian

// Format describes interleaved linear PCM.
type Format struct {
	Channels    uint16
	SampleWidth uint16 // bytes per sample
	SampleRate  uint32
}

// Mono16k is the capture format used by bedside devices: mono, 16-bit, 16 kHz.
var Mono16k = Format{Channels: 1, SampleWidth: 2, SampleRate: 16000}

// BlockAlign is the size in bytes of one sample frame across all channels.
func (f Format) BlockAlign() int {
	return int(f.Channels) * int(f.SampleWidth)
}

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() uint32 {
	return f.SampleRate * uint32(f.BlockAlign())
}

func (f Format) validate() error {
	if f.Channels == 0 || f.SampleWidth == 0 || f.SampleRate == 0 {
		return fmt.Errorf("wav: invalid format %+v", f)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%d ch, %d-bit, %d Hz", f.Channels, 8*f.SampleWidth, f.SampleRate)
}

// header serializes a canonical 44 byte header for dataLen bytes of samples,
// followed by pad bytes that count toward the RIFF size only.
func header(f Format, dataLen, pad uint32) []byte {
	w := packet.NewWriterSize(HeaderSize, byteOrder)

	w.WriteTag("RIFF")
	w.WriteUint32(HeaderSize - 8 + dataLen + pad)
	w.WriteTag("WAVE")

	w.WriteTag("fmt ")
	w.WriteUint32(16)
	w.WriteUint16(formatPCM)
	w.WriteUint16(f.Channels)
	w.WriteUint32(f.SampleRate)
	w.WriteUint32(f.ByteRate())
	w.WriteUint16(uint16(f.BlockAlign()))
	w.WriteUint16(8 * f.SampleWidth)

	w.WriteTag("data")
	w.WriteUint32(dataLen)

	return w.Bytes()
}
