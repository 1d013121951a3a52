package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func annexB(nalus ...[]byte) []byte {
	var b []byte
	for _, n := range nalus {
		b = append(b, 0, 0, 0, 1)
		b = append(b, n...)
	}
	return b
}

func TestInspectH264Empty(t *testing.T) {
	info := InspectH264(nil)
	assert.Equal(t, LayoutEmpty, info.Layout)
	assert.False(t, info.StreamCopyable())
}

func TestInspectH264AnnexB(t *testing.T) {
	b := annexB(
		[]byte{0x09, 0xf0},             // AUD
		[]byte{0x65, 0x88, 0x84, 0x00}, // IDR slice
		[]byte{0x41, 0x9a, 0x02},       // non-IDR slice
		[]byte{0x65, 0x88, 0x80, 0x10}, // IDR slice
	)

	info := InspectH264(b)
	assert.Equal(t, LayoutAnnexB, info.Layout)
	assert.Equal(t, 4, info.NALUs)
	assert.Equal(t, 3, info.Frames)
	assert.Equal(t, 2, info.KeyFrames)
	assert.False(t, info.HasSPS)
	assert.False(t, info.StreamCopyable())
}

func TestInspectH264JPEG(t *testing.T) {
	// Older clients send JPEG frames, which cannot be stream-copied.
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	info := InspectH264(jpeg)
	assert.Equal(t, LayoutRaw, info.Layout)
	assert.False(t, info.StreamCopyable())
}

func TestInspectMP4Missing(t *testing.T) {
	_, err := InspectMP4("/nonexistent/encounter.mp4")
	assert.Error(t, err)
}
