package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap"
	"github.com/lanikai/alohacap/internal/cut"
	"github.com/lanikai/alohacap/internal/framing"
	"github.com/lanikai/alohacap/internal/ingest"
	"github.com/lanikai/alohacap/internal/media"
	"github.com/lanikai/alohacap/internal/mux"
)

type memorySink struct {
	mu           sync.Mutex
	audio, video []string
	finalized    int
}

func (s *memorySink) AppendAudio(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, string(p))
	return nil
}

func (s *memorySink) AppendVideo(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = append(s.video, string(p))
	return nil
}

func (s *memorySink) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized++
	return nil
}

func (s *memorySink) snapshot() (audio, video []string, finalized int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.audio...), append([]string(nil), s.video...), s.finalized
}

type fakeRecorder struct {
	sink *memorySink

	mu       sync.Mutex
	open     bool
	released int

	cutResult *cut.Result
	cutErr    error
	tokens    []string
}

func (r *fakeRecorder) Open(id string) (*ingest.Session, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return nil, nil, errors.Wrap(alohacap.ErrBusy, "test")
	}
	r.open = true
	release := func() {
		r.mu.Lock()
		r.open = false
		r.released++
		r.mu.Unlock()
	}
	return ingest.NewSession(id, framing.New(framing.ModeExplicit), r.sink), release, nil
}

func (r *fakeRecorder) Cut(ctx context.Context, token string) (*cut.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return r.cutResult, r.cutErr
}

func (r *fakeRecorder) Lookup(token string) (*cut.Result, bool) {
	if r.cutResult != nil && r.cutResult.Token == token {
		return r.cutResult, true
	}
	return nil, false
}

func (r *fakeRecorder) AppendAudio(p []byte) error {
	return r.sink.AppendAudio(p)
}

func (r *fakeRecorder) AppendVideo(p []byte) error {
	return r.sink.AppendVideo(p)
}

func (r *fakeRecorder) Status() alohacap.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return alohacap.Status{Streaming: r.open, Framing: "explicit"}
}

func (r *fakeRecorder) releases() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

func newTestServer(t *testing.T, rec *fakeRecorder) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerOptions(t, rec, Options{})
}

func newTestServerOptions(t *testing.T, rec *fakeRecorder, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if rec.sink == nil {
		rec.sink = &memorySink{}
	}
	s := New(rec, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Shutdown(context.Background())
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestStream(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)
	conn := dial(t, ts)

	for _, msg := range []string{"\x01", "abcd", "\x02", "xy", "\x01", "ef"} {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(msg)))
	}
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Eventually(t, func() bool { return rec.releases() == 1 }, 5*time.Second, 10*time.Millisecond)

	audio, video, finalized := rec.sink.snapshot()
	assert.Equal(t, []string{"abcd", "ef"}, audio)
	assert.Equal(t, []string{"xy"}, video)
	assert.Equal(t, 1, finalized)
}

func TestStreamBusy(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)
	dial(t, ts)

	assert.Eventually(t, func() bool { return rec.Status().Streaming }, 5*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStreamTextMessage(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "got %v", err)
	assert.Eventually(t, func() bool { return rec.releases() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestStreamMessageTooBig(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServerOptions(t, rec, Options{MaxMessageSize: 8})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("\x01")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("0123456789abcdef")))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
	assert.Eventually(t, func() bool { return rec.releases() == 1 }, 5*time.Second, 10*time.Millisecond)

	audio, _, _ := rec.sink.snapshot()
	assert.Empty(t, audio)
}

func TestCloseStatus(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{nil, websocket.CloseNormalClosure},
		{errors.Wrap(context.Canceled, "session t"), websocket.CloseGoingAway},
		{errors.Wrap(websocket.ErrReadLimit, "session t"), websocket.CloseMessageTooBig},
		{errors.Wrap(framing.ErrMalformedHeader, "session t"), websocket.CloseUnsupportedData},
	} {
		code, reason := closeStatus(tc.err)
		assert.Equal(t, tc.code, code, "%v", tc.err)
		assert.LessOrEqual(t, len(reason), 123)
	}

	_, reason := closeStatus(errors.New(strings.Repeat("x", 500)))
	assert.Len(t, reason, 120)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijkl", 10))

	// "é" is two bytes; the cut would land between them.
	s := truncate("abcdeé tail", 9)
	assert.True(t, utf8.ValidString(s), "%q", s)
	assert.Equal(t, "abcde...", s)
	assert.LessOrEqual(t, len(s), 9)
}

func TestStreamShutdown(t *testing.T) {
	rec := &fakeRecorder{}
	s, ts := newTestServer(t, rec)
	conn := dial(t, ts)

	assert.Eventually(t, func() bool { return rec.Status().Streaming }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return rec.releases() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestBadgeScan(t *testing.T) {
	captured := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := &fakeRecorder{cutResult: &cut.Result{
		Token:      "BEEF01",
		OutputPath: "/var/lib/alohacap/encounter.mp4",
		CapturedAt: captured,
	}}
	_, ts := newTestServer(t, rec)

	status, body := getJSON(t, ts.URL+"/badge-scan/BEEF01")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "BEEF01", body["token"])
	assert.Equal(t, "/var/lib/alohacap/encounter.mp4", body["outputArtifactPath"])
	assert.Equal(t, captured.Format(time.RFC3339), body["capturedAtTimestamp"])
	rec.mu.Lock()
	assert.Equal(t, []string{"BEEF01"}, rec.tokens)
	rec.mu.Unlock()

	status, body = getJSON(t, ts.URL+"/cuts/BEEF01")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "BEEF01", body["token"])

	status, body = getJSON(t, ts.URL+"/cuts/CAFE")
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}

func TestBadgeScanErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"invalid token", errors.Wrap(alohacap.ErrInvalidToken, "zz"), http.StatusBadRequest, "invalid badge id"},
		{"finalize", &media.FinalizeError{Err: errors.New("disk full")}, http.StatusInternalServerError, "finalize failed"},
		{"mux", &mux.Error{ExitCode: 1, Err: errors.New("exit status 1")}, http.StatusBadGateway, "mux failed"},
		{"other", errors.New("no space left on device"), http.StatusInternalServerError, "cut failed"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, ts := newTestServer(t, &fakeRecorder{cutErr: tc.err})
			status, body := getJSON(t, ts.URL+"/badge-scan/abc")
			assert.Equal(t, tc.status, status)
			assert.Equal(t, map[string]interface{}{"error": tc.msg}, body)
		})
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, &fakeRecorder{})
	status, body := getJSON(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["streaming"])
	assert.Equal(t, "explicit", body["framing"])
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, &fakeRecorder{})
	resp, err := http.Post(ts.URL+"/badge-scan/abc", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
