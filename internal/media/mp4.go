package media

import (
	"os"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/format/mp4"
	"github.com/pkg/errors"
)

// StreamInfo describes one stream of a muxed container.
type StreamInfo struct {
	Codec      string `json:"codec"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

// InspectMP4 opens an MP4 file and lists its streams.
func InspectMP4(filename string) (streams []StreamInfo, err error) {
	// The demuxer trusts atom sizes and can panic on a corrupt file.
	defer func() {
		if r := recover(); r != nil {
			streams, err = nil, errors.Errorf("demux %s: %v", filename, r)
		}
	}()

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	codecs, err := mp4.NewDemuxer(file).Streams()
	if err != nil {
		return nil, errors.Wrapf(err, "demux %s", filename)
	}

	streams = make([]StreamInfo, 0, len(codecs))
	for _, codec := range codecs {
		info := StreamInfo{Codec: codec.Type().String()}
		switch cd := codec.(type) {
		case av.VideoCodecData:
			info.Width, info.Height = cd.Width(), cd.Height()
		case av.AudioCodecData:
			info.SampleRate = cd.SampleRate()
		}
		streams = append(streams, info)
	}
	return streams, nil
}
