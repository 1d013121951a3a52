package media

import (
	"github.com/nareix/joy4/codec/h264parser"

	"github.com/lanikai/alohacap/internal/media/h264"
)

// Bitstream layouts reported by InspectH264.
const (
	LayoutEmpty  = "empty"
	LayoutRaw    = "raw" // not recognizably H.264
	LayoutAVCC   = "avcc"
	LayoutAnnexB = "annexb"
)

// VideoInfo summarizes a raw video elementary stream.
type VideoInfo struct {
	Layout    string `json:"layout"`
	NALUs     int    `json:"nalus"`
	Frames    int    `json:"frames"` // coded slices, key frames included
	KeyFrames int    `json:"keyFrames"`
	HasSPS    bool   `json:"hasSps"`
	HasPPS    bool   `json:"hasPps"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// StreamCopyable reports whether the stream can be muxed without re-encoding:
// Annex B framing with parameter sets and at least one key frame.
func (v VideoInfo) StreamCopyable() bool {
	return v.Layout == LayoutAnnexB && v.HasSPS && v.HasPPS && v.KeyFrames > 0
}

// InspectH264 reports the NAL unit structure of b.
func InspectH264(b []byte) VideoInfo {
	if len(b) == 0 {
		return VideoInfo{Layout: LayoutEmpty}
	}

	nalus, typ := h264parser.SplitNALUs(b)
	info := VideoInfo{NALUs: len(nalus)}
	switch typ {
	case h264parser.NALU_ANNEXB:
		info.Layout = LayoutAnnexB
	case h264parser.NALU_AVCC:
		info.Layout = LayoutAVCC
	default:
		return VideoInfo{Layout: LayoutRaw}
	}

	var sps, pps []byte
	for _, raw := range nalus {
		nalu := h264.NALU(raw)
		if !nalu.Valid() {
			continue
		}
		switch nalu.Type() {
		case h264.TypeSlice:
			info.Frames++
		case h264.TypeIDR:
			info.Frames++
			info.KeyFrames++
		case h264.TypeSPS:
			if sps == nil {
				sps = nalu
			}
		case h264.TypePPS:
			if pps == nil {
				pps = nalu
			}
		}
	}
	info.HasSPS = sps != nil
	info.HasPPS = pps != nil
	if sps != nil && pps != nil {
		info.Width, info.Height = dimensions(sps, pps)
	}
	return info
}

// dimensions returns the coded frame size, or zeros if the parameter sets do
// not parse. Device bitstreams are untrusted and the parser is not hardened
// against truncated input.
func dimensions(sps, pps []byte) (width, height int) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug("SPS parse panic: %v", r)
			width, height = 0, 0
		}
	}()

	cd, err := h264parser.NewCodecDataFromSPSAndPPS(sps, pps)
	if err != nil {
		log.Debug("SPS parse: %v", err)
		return 0, 0
	}
	return cd.Width(), cd.Height()
}
