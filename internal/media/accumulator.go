package media

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/wav"
)

var log = logging.DefaultLogger.WithTag("media")

const initialAudioCapacity = 64 * 1024

// AccumulatorConfig configures an Accumulator.
type AccumulatorConfig struct {
	// Audio format of the incoming PCM. Defaults to wav.Mono16k.
	Format wav.Format

	// Allocates the backing store of each new sink. Defaults to NewBuffer.
	NewBuffer func() MediaSink

	// Clock used for snapshot timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Accumulator owns the live audio/video sink pair of one ingestion context.
// AppendAudio, AppendVideo, Swap, and Finalize are mutually exclusive; each
// holds the lock only for its own in-memory work.
type Accumulator struct {
	format    wav.Format
	newBuffer func() MediaSink
	now       func() time.Time

	mu         sync.Mutex
	audio      *AudioSink
	video      *VideoSink
	generation uint64
	hooks      map[int]func()
	nextHook   int
}

func NewAccumulator(config AccumulatorConfig) *Accumulator {
	a := &Accumulator{
		format:    config.Format,
		newBuffer: config.NewBuffer,
		now:       config.Now,
		hooks:     make(map[int]func()),
	}
	if a.format == (wav.Format{}) {
		a.format = wav.Mono16k
	}
	if a.newBuffer == nil {
		a.newBuffer = func() MediaSink { return NewBuffer(initialAudioCapacity) }
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.install()
	return a
}

// install replaces the live pair with empty sinks. Caller must hold mu, except
// during construction.
func (a *Accumulator) install() {
	a.audio = NewAudioSink(a.newBuffer(), a.format)
	a.video = NewVideoSink(a.newBuffer())
}

// AppendAudio writes raw PCM samples to the live audio sink.
func (a *Accumulator) AppendAudio(p []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.audio.Write(p); err != nil {
		return errors.Wrap(err, "append audio")
	}
	return nil
}

// AppendVideo appends raw bytes to the live video sink.
func (a *Accumulator) AppendVideo(p []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.video.Write(p); err != nil {
		return errors.Wrap(err, "append video")
	}
	return nil
}

// Swap seals the live audio sink, detaches both sinks as a Snapshot, and
// installs an empty pair. Every append either completes before Swap and is in
// the snapshot, or runs after it and lands in the new pair.
//
// If sealing fails the new pair is installed anyway, the old content is
// discarded, and a *FinalizeError is returned.
func (a *Accumulator) Swap() (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	capturedAt := a.now()
	sealErr := a.audio.Close()
	audio, video := a.audio.Bytes(), a.video.Bytes()

	a.install()
	generation := a.generation
	a.generation++

	for _, hook := range a.hooks {
		hook()
	}

	if sealErr != nil {
		log.Error("Swap %d: %v", generation, sealErr)
		return nil, &FinalizeError{Err: sealErr}
	}

	snap := &Snapshot{
		ID:         uuid.New().String(),
		Audio:      audio,
		Video:      video,
		CapturedAt: capturedAt,
		Generation: generation,
	}
	log.Debug("Swap %d: %d audio bytes, %d video bytes", generation, len(audio), len(video))
	return snap, nil
}

// Finalize seals the live audio sink in place, without detaching it. Further
// appends continue the same stream.
func (a *Accumulator) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.audio.Sync(); err != nil {
		return &FinalizeError{Err: err}
	}
	return nil
}

// OnSwap registers f to run inside every subsequent Swap, while the lock is
// held. f must not call back into the Accumulator. The returned function
// unregisters f.
func (a *Accumulator) OnSwap(f func()) (remove func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextHook
	a.nextHook++
	a.hooks[id] = f

	return func() {
		a.mu.Lock()
		delete(a.hooks, id)
		a.mu.Unlock()
	}
}

// Stats describes the live sink pair.
type Stats struct {
	AudioBytes int    `json:"audioBytes"`
	VideoBytes int    `json:"videoBytes"`
	Swaps      uint64 `json:"swaps"`
}

func (a *Accumulator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		AudioBytes: a.audio.Len(),
		VideoBytes: a.video.Len(),
		Swaps:      a.generation,
	}
}
