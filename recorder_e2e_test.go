package alohacap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap"
	"github.com/lanikai/alohacap/internal/cut"
	"github.com/lanikai/alohacap/internal/mux"
	"github.com/lanikai/alohacap/internal/server"
	"github.com/lanikai/alohacap/internal/wav"
)

// captureMuxer keeps the decoded inputs of every mux.
type captureMuxer struct {
	mu    sync.Mutex
	pcm   [][]byte
	video [][]byte
}

func (m *captureMuxer) Combine(ctx context.Context, req mux.Request) error {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return err
	}
	_, pcm, err := wav.Decode(audio)
	if err != nil {
		return err
	}
	var video []byte
	if req.VideoPath != "" {
		if video, err = os.ReadFile(req.VideoPath); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.pcm = append(m.pcm, pcm)
	m.video = append(m.video, video)
	m.mu.Unlock()
	return os.WriteFile(req.OutputPath, nil, 0644)
}

func TestEncounter(t *testing.T) {
	config := alohacap.DefaultConfig()
	config.WorkDir = t.TempDir()
	muxer := &captureMuxer{}
	rec, err := alohacap.NewRecorder(config, muxer)
	require.NoError(t, err)

	srv := server.New(rec, server.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	send := func(msgs ...string) {
		for _, msg := range msgs {
			require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(msg)))
		}
	}
	buffered := func(audio, video int) func() bool {
		return func() bool {
			s := rec.Status()
			return s.AudioBytes == audio && s.VideoBytes == video
		}
	}
	scan := func(token string) cut.Result {
		resp, err := http.Get(ts.URL + "/badge-scan/" + token)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result cut.Result
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		return result
	}

	send("\x01", "abcd", "\x02", "xy")
	require.Eventually(t, buffered(4, 2), 5*time.Second, 10*time.Millisecond)

	first := scan("A1")
	assert.Equal(t, "A1", first.Token)
	assert.FileExists(t, first.OutputPath)

	// Streaming continues into fresh buffers after the cut.
	send("\x01", "efgh", "\x01", "ij")
	require.Eventually(t, buffered(6, 0), 5*time.Second, 10*time.Millisecond)

	second := scan("B2")
	assert.NotEqual(t, first.OutputPath, second.OutputPath)

	muxer.mu.Lock()
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("efghij")}, muxer.pcm)
	assert.Equal(t, [][]byte{[]byte("xy"), nil}, muxer.video)
	muxer.mu.Unlock()

	resp, err := http.Get(ts.URL + "/cuts/A1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
