//////////////////////////////////////////////////////////////////////////////
//
// Config contains configuration data for a Recorder
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohacap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/framing"
)

var videoFormatPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

type Config struct {
	// Address of the HTTP listener.
	Addr string `json:"addr"`

	// Directory for temporary mux inputs.
	WorkDir string `json:"workDir"`

	// Directory for finished artifacts. Defaults to WorkDir.
	OutputDir string `json:"outputDir"`

	// Inbound framing, "explicit" or "alternating".
	Framing string `json:"framing"`

	// Path or name of the ffmpeg binary.
	FFmpeg string `json:"ffmpeg"`

	// Encoding of the device's video stream, as an ffmpeg demuxer name: "h264"
	// for H.264 Annex B, "mjpeg" for concatenated JPEG frames.
	VideoFormat string `json:"videoFormat"`

	// Upper bound on one mux.
	MuxTimeout Duration `json:"muxTimeout"`

	// Keep the WAV and raw video inputs after a successful mux.
	KeepInputs bool `json:"keepInputs"`

	// Maximum simultaneous HTTP connections.
	MaxConnections int `json:"maxConnections"`

	// Largest accepted websocket message, in bytes.
	MaxMessageSize int64 `json:"maxMessageSize"`

	// Number of cut results remembered for lookup.
	ResultCacheSize int `json:"resultCacheSize"`
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		WorkDir:         filepath.Join(os.TempDir(), "alohacap"),
		Framing:         framing.ModeExplicit.String(),
		FFmpeg:          "ffmpeg",
		VideoFormat:     "h264",
		MuxTimeout:      Duration(2 * time.Minute),
		MaxConnections:  64,
		MaxMessageSize:  16 << 20,
		ResultCacheSize: 128,
	}
}

// LoadConfig reads a JSON config file. Fields absent from the file keep their
// default values.
func LoadConfig(filePath string) (Config, error) {
	config := DefaultConfig()

	d, err := os.ReadFile(filePath)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(d, &config); err != nil {
		return config, errors.Wrapf(err, "parse %s", filePath)
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	if _, err := framing.ParseMode(c.Framing); err != nil {
		return errors.Wrap(err, "config")
	}
	if !videoFormatPattern.MatchString(c.VideoFormat) {
		return errors.Errorf("config: invalid videoFormat %q", c.VideoFormat)
	}
	if c.WorkDir == "" {
		return errors.New("config: workDir is required")
	}
	if c.MuxTimeout < 0 {
		return errors.Errorf("config: negative muxTimeout %v", c.MuxTimeout)
	}
	if c.ResultCacheSize < 0 {
		return errors.Errorf("config: negative resultCacheSize %d", c.ResultCacheSize)
	}
	return nil
}

// Duration is a time.Duration that reads as "90s" or as a number of seconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*d = Duration(v * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return errors.Errorf("invalid duration %s", b)
	}
	return nil
}
