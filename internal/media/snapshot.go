package media

import (
	"time"

	"github.com/lanikai/alohacap/internal/wav"
)

// Snapshot is the immutable content of one sink pair, detached at a swap. It
// shares no memory with the live sinks.
type Snapshot struct {
	// Random identifier, unique per swap.
	ID string

	// Sealed WAV stream.
	Audio []byte

	// Raw video elementary stream.
	Video []byte

	CapturedAt time.Time

	// Number of swaps performed by the accumulator before this one.
	Generation uint64
}

// PCM returns the format and raw samples of the audio stream.
func (s *Snapshot) PCM() (wav.Format, []byte, error) {
	return wav.Decode(s.Audio)
}

// AudioDuration returns the length of the captured audio, or 0 if the stream
// cannot be parsed.
func (s *Snapshot) AudioDuration() time.Duration {
	f, pcm, err := s.PCM()
	if err != nil || f.ByteRate() == 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(f.ByteRate())
}
