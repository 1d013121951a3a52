package server

import (
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/framing"
)

// Uploads feed the same buffers as the live stream, so the next badge scan
// cuts them together with anything streamed in the meantime.

type uploadResult struct {
	AudioBytes int `json:"audioBytes,omitempty"`
	VideoBytes int `json:"videoBytes,omitempty"`
	Frames     int `json:"frames,omitempty"`
}

// POST /test carries one recording as two files, audio_file (PCM) and
// video_file (raw video), appended whole.
func (s *Server) handleTestUpload(w http.ResponseWriter, r *http.Request) {
	parts, ok := s.readParts(w, r, "audio_file", "video_file")
	if !ok {
		return
	}
	audio, video := parts["audio_file"], parts["video_file"]
	if err := s.recorder.AppendAudio(audio); err != nil {
		s.appendFailed(w, err)
		return
	}
	if err := s.recorder.AppendVideo(video); err != nil {
		s.appendFailed(w, err)
		return
	}
	log.Info("Upload from %s: %d audio, %d video bytes", r.RemoteAddr, len(audio), len(video))
	writeJSON(w, http.StatusOK, uploadResult{AudioBytes: len(audio), VideoBytes: len(video)})
}

// POST /upload-audio carries 16-bit PCM in the file field.
func (s *Server) handleAudioUpload(w http.ResponseWriter, r *http.Request) {
	parts, ok := s.readParts(w, r, "file")
	if !ok {
		return
	}
	audio := parts["file"]
	if err := s.recorder.AppendAudio(audio); err != nil {
		s.appendFailed(w, err)
		return
	}
	log.Info("Audio upload from %s: %d bytes", r.RemoteAddr, len(audio))
	writeJSON(w, http.StatusOK, uploadResult{AudioBytes: len(audio)})
}

// POST /upload-video carries length-prefixed frames in the file field. A
// truncated file is rejected before any frame is appended.
func (s *Server) handleVideoUpload(w http.ResponseWriter, r *http.Request) {
	parts, ok := s.readParts(w, r, "file")
	if !ok {
		return
	}

	var frames [][]byte
	fr := framing.NewLengthPrefixed(parts["file"])
	for {
		frame, err := fr.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		frames = append(frames, frame)
	}

	n := 0
	for _, frame := range frames {
		if err := s.recorder.AppendVideo(frame); err != nil {
			s.appendFailed(w, err)
			return
		}
		n += len(frame)
	}
	log.Info("Video upload from %s: %d frames, %d bytes", r.RemoteAddr, len(frames), n)
	writeJSON(w, http.StatusOK, uploadResult{VideoBytes: n, Frames: len(frames)})
}

// readParts reads the named file fields of a multipart body. Other fields are
// skipped. On failure the response has been written and ok is false.
func (s *Server) readParts(w http.ResponseWriter, r *http.Request, names ...string) (parts map[string][]byte, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxMessageSize)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}

	parts = make(map[string][]byte, len(names))
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err == nil && want[part.FormName()] {
			parts[part.FormName()], err = io.ReadAll(part)
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			} else {
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return nil, false
		}
	}

	for _, name := range names {
		if _, found := parts[name]; !found {
			writeError(w, http.StatusBadRequest, "missing file "+name)
			return nil, false
		}
	}
	return parts, true
}

func (s *Server) appendFailed(w http.ResponseWriter, err error) {
	log.Error("Upload: %v", err)
	writeError(w, http.StatusInternalServerError, "append failed")
}
