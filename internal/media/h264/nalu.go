// Package h264 has helpers for H.264 network abstraction layer units.
package h264

// NAL unit types, ITU-T H.264 table 7-1.
const (
	TypeSlice = 1
	TypeIDR   = 5
	TypeSPS   = 7
	TypePPS   = 8
)

type NALU []byte

func (nalu NALU) ForbiddenBit() byte {
	return nalu[0] & 0x80 >> 7
}

func (nalu NALU) NRI() byte {
	return nalu[0] & 0x60 >> 5
}

func (nalu NALU) Type() byte {
	return nalu[0] & 0x1f
}

// Valid reports whether the unit is non-empty with the forbidden bit clear.
func (nalu NALU) Valid() bool {
	return len(nalu) > 0 && nalu.ForbiddenBit() == 0
}
