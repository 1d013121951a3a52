// Package cut turns a detached media snapshot into a playable artifact.
package cut

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/media"
	"github.com/lanikai/alohacap/internal/mux"
)

var log = logging.DefaultLogger.WithTag("cut")

// Layout of timestamps in artifact names. Sortable, and fine-grained enough
// that the snapshot ID only disambiguates cuts within the same microsecond.
const stampLayout = "20060102_150405.000000"

// Result describes a finished cut.
type Result struct {
	Token      string             `json:"token"`
	OutputPath string             `json:"outputArtifactPath"`
	CapturedAt time.Time          `json:"capturedAtTimestamp"`
	SnapshotID string             `json:"snapshotId"`
	AudioBytes int                `json:"audioBytes"`
	VideoBytes int                `json:"videoBytes"`
	Duration   float64            `json:"audioSeconds"`
	Video      media.VideoInfo    `json:"video"`
	Streams    []media.StreamInfo `json:"streams,omitempty"`
}

// Pipeline persists snapshots and muxes them.
type Pipeline struct {
	// Directory for the temporary WAV and raw video inputs.
	WorkDir string

	// Directory for muxed artifacts. Defaults to WorkDir.
	OutputDir string

	Muxer mux.Muxer

	// Upper bound on one mux. Zero means no limit.
	Timeout time.Duration

	// Keep the temporary inputs after a successful mux.
	KeepInputs bool

	// Encoding of the raw video stream, as an ffmpeg demuxer name. Selects the
	// video input's file extension. Defaults to "h264".
	VideoFormat string
}

// Extensions of raw video inputs by format. Unlisted formats use their name.
var videoExtensions = map[string]string{
	"h264":  ".h264",
	"hevc":  ".h265",
	"mjpeg": ".mjpeg",
}

func (p *Pipeline) videoFormat() string {
	if p.VideoFormat == "" {
		return "h264"
	}
	return p.VideoFormat
}

func (p *Pipeline) videoExt() string {
	if ext, ok := videoExtensions[p.videoFormat()]; ok {
		return ext
	}
	return "." + p.videoFormat()
}

// Stem returns the base name shared by all files of a snapshot's cut.
func Stem(snap *media.Snapshot) string {
	return fmt.Sprintf("encounter-%s-%s", snap.CapturedAt.UTC().Format(stampLayout), snap.ID)
}

// Cut writes the snapshot to disk and muxes it. On a mux failure the returned
// error matches mux.ErrMuxFailed and the inputs are left in WorkDir.
func (p *Pipeline) Cut(ctx context.Context, snap *media.Snapshot) (*Result, error) {
	if p.Muxer == nil {
		return nil, errors.New("cut: no muxer configured")
	}
	outputDir := p.OutputDir
	if outputDir == "" {
		outputDir = p.WorkDir
	}
	for _, dir := range []string{p.WorkDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "cut")
		}
	}

	stem := Stem(snap)
	req := mux.Request{
		AudioPath:  filepath.Join(p.WorkDir, stem+".wav"),
		OutputPath: filepath.Join(outputDir, stem+".mp4"),
	}
	if len(snap.Video) > 0 {
		req.VideoPath = filepath.Join(p.WorkDir, stem+p.videoExt())
	}

	result := &Result{
		OutputPath: req.OutputPath,
		CapturedAt: snap.CapturedAt,
		SnapshotID: snap.ID,
		AudioBytes: len(snap.Audio),
		VideoBytes: len(snap.Video),
		Duration:   snap.AudioDuration().Seconds(),
		Video:      media.InspectH264(snap.Video),
	}

	if err := p.persist(req, snap); err != nil {
		p.remove(req)
		return nil, err
	}

	switch v := result.Video; {
	case v.Layout == media.LayoutEmpty:
		log.Info("Snapshot %s has no video, muxing audio only", snap.ID)
	case p.videoFormat() != "h264":
		log.Debug("Snapshot %s video: %d bytes of %s", snap.ID, len(snap.Video), p.videoFormat())
	case !v.StreamCopyable():
		log.Warn("Snapshot %s video is not stream-copyable H.264 (%+v)", snap.ID, v)
	default:
		log.Debug("Snapshot %s video: %+v", snap.ID, v)
	}

	muxCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		muxCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if err := p.Muxer.Combine(muxCtx, req); err != nil {
		log.Error("Cut %s failed, inputs kept in %s: %v", stem, p.WorkDir, err)
		return nil, err
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		log.Error("Cut %s produced no output, inputs kept in %s", stem, p.WorkDir)
		return nil, &mux.Error{ExitCode: 0, Err: errors.Wrap(err, "no output")}
	}

	if streams, err := media.InspectMP4(req.OutputPath); err != nil {
		log.Warn("Inspect %s: %v", req.OutputPath, err)
	} else {
		result.Streams = streams
	}

	if !p.KeepInputs {
		p.remove(req)
	}
	log.Info("Cut %s: %.1fs audio, %d video bytes -> %s",
		snap.ID, result.Duration, result.VideoBytes, result.OutputPath)
	return result, nil
}

func (p *Pipeline) persist(req mux.Request, snap *media.Snapshot) error {
	if err := writeNew(req.AudioPath, snap.Audio); err != nil {
		return errors.Wrap(err, "cut: write audio")
	}
	if req.VideoPath != "" {
		if err := writeNew(req.VideoPath, snap.Video); err != nil {
			return errors.Wrap(err, "cut: write video")
		}
	}
	return nil
}

// writeNew creates path exclusively, so concurrent cuts cannot clobber each
// other's inputs.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *Pipeline) remove(req mux.Request) {
	for _, path := range []string{req.AudioPath, req.VideoPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("Remove %s: %v", path, err)
		}
	}
}
