package alohacap

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/cut"
	"github.com/lanikai/alohacap/internal/framing"
	"github.com/lanikai/alohacap/internal/ingest"
	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/media"
	"github.com/lanikai/alohacap/internal/mux"
)

var log = logging.DefaultLogger.WithTag("alohacap")

var tokenPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// Recorder is the ingestion context of one device. It accepts one stream at a
// time and cuts the accumulated media on demand.
type Recorder struct {
	mode     framing.Mode
	acc      *media.Accumulator
	pipeline *cut.Pipeline

	mu      sync.Mutex
	session *ingest.Session
	results *lru.Cache
	cuts    int
}

// NewRecorder creates a Recorder. A nil muxer selects ffmpeg.
func NewRecorder(config Config, muxer mux.Muxer) (*Recorder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	mode, _ := framing.ParseMode(config.Framing)

	if muxer == nil {
		muxer = &mux.FFmpeg{Binary: config.FFmpeg, VideoFormat: config.VideoFormat}
	}

	return &Recorder{
		mode: mode,
		acc:  media.NewAccumulator(media.AccumulatorConfig{}),
		pipeline: &cut.Pipeline{
			WorkDir:    config.WorkDir,
			OutputDir:  config.OutputDir,
			Muxer:      muxer,
			Timeout:    time.Duration(config.MuxTimeout),
			KeepInputs: config.KeepInputs,

			VideoFormat: config.VideoFormat,
		},
		results: lru.New(config.ResultCacheSize),
	}, nil
}

// Open reserves the recorder for a new stream. release must be called when
// the stream ends.
func (r *Recorder) Open(id string) (*ingest.Session, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return nil, nil, errors.Wrapf(ErrBusy, "session %s", r.session.ID)
	}

	framer := framing.New(r.mode)
	removeHook := func() {}
	if r.mode == framing.ModeAlternating {
		// A cut starts the next recording on an audio frame.
		removeHook = r.acc.OnSwap(framer.Reset)
	}
	session := ingest.NewSession(id, framer, r.acc)
	r.session = session

	var once sync.Once
	release := func() {
		once.Do(func() {
			removeHook()
			r.mu.Lock()
			r.session = nil
			r.mu.Unlock()
		})
	}
	return session, release, nil
}

// Cut swaps out everything captured so far and muxes it into one artifact.
// Ingestion continues into fresh buffers while the mux runs.
func (r *Recorder) Cut(ctx context.Context, token string) (*cut.Result, error) {
	if !tokenPattern.MatchString(token) {
		return nil, errors.Wrapf(ErrInvalidToken, "%q", token)
	}

	snap, err := r.acc.Swap()
	if err != nil {
		return nil, err
	}
	log.Info("Badge %s: cut snapshot %s (%d audio, %d video bytes)",
		token, snap.ID, len(snap.Audio), len(snap.Video))

	result, err := r.pipeline.Cut(ctx, snap)
	if err != nil {
		return nil, err
	}
	result.Token = token

	r.mu.Lock()
	r.results.Add(token, result)
	r.cuts++
	r.mu.Unlock()
	return result, nil
}

// AppendAudio adds PCM recorded outside a stream, such as an upload.
func (r *Recorder) AppendAudio(p []byte) error {
	return r.acc.AppendAudio(p)
}

// AppendVideo adds one encoded video unit recorded outside a stream.
func (r *Recorder) AppendVideo(p []byte) error {
	return r.acc.AppendVideo(p)
}

// Lookup returns the latest successful cut for token.
func (r *Recorder) Lookup(token string) (*cut.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.results.Get(token)
	if !ok {
		return nil, false
	}
	return v.(*cut.Result), true
}

// Status describes the recorder for health checks.
type Status struct {
	Streaming bool   `json:"streaming"`
	Session   string `json:"session,omitempty"`
	Framing   string `json:"framing"`
	Cuts      int    `json:"cuts"`
	media.Stats
}

func (r *Recorder) Status() Status {
	stats := r.acc.Stats()

	r.mu.Lock()
	defer r.mu.Unlock()

	status := Status{
		Framing: r.mode.String(),
		Cuts:    r.cuts,
		Stats:   stats,
	}
	if r.session != nil {
		status.Streaming = true
		status.Session = r.session.ID
	}
	return status
}
