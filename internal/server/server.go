// Package server exposes the device streaming endpoint and the cut trigger
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/lanikai/alohacap"
	"github.com/lanikai/alohacap/internal/cut"
	"github.com/lanikai/alohacap/internal/ingest"
	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/media"
	"github.com/lanikai/alohacap/internal/mux"
)

var log = logging.DefaultLogger.WithTag("server")

const (
	defaultMaxMessageSize = 16 << 20
	closeWriteTimeout     = time.Second
)

// A Recorder owns the media of one device.
type Recorder interface {
	// Open reserves the ingestion slot. It fails with alohacap.ErrBusy while
	// another session holds it. release must be called once the session ends.
	Open(id string) (s *ingest.Session, release func(), err error)

	// Cut detaches everything captured so far and muxes it.
	Cut(ctx context.Context, token string) (*cut.Result, error)

	// Lookup returns the most recent result for token.
	Lookup(token string) (*cut.Result, bool)

	// AppendAudio and AppendVideo add uploaded media to the live buffers.
	AppendAudio(p []byte) error
	AppendVideo(p []byte) error

	Status() alohacap.Status
}

type Options struct {
	Addr string

	// Maximum simultaneous HTTP connections. Zero means unlimited.
	MaxConnections int

	// Largest accepted websocket message or upload body. Defaults to 16 MiB.
	MaxMessageSize int64
}

// Server is the device-facing HTTP server.
type Server struct {
	recorder Recorder
	opts     Options
	upgrader websocket.Upgrader
	http     *http.Server

	// Cancels running sessions on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(recorder Recorder, opts Options) *Server {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}

	router := http.NewServeMux()
	s := &Server{
		recorder: recorder,
		opts:     opts,
		upgrader: websocket.Upgrader{
			// Devices are not browsers and send no meaningful Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		http: &http.Server{
			Addr:     opts.Addr,
			Handler:  router,
			ErrorLog: stdlog.New(log.Writer(logging.Warn), "", 0),
		},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	router.HandleFunc("GET /ws", s.handleWebsocket)
	router.HandleFunc("GET /badge-scan/{token}", s.handleBadgeScan)
	router.HandleFunc("GET /cuts/{token}", s.handleLookup)
	router.HandleFunc("GET /healthz", s.handleHealth)
	router.HandleFunc("POST /test", s.handleTestUpload)
	router.HandleFunc("POST /upload-audio", s.handleAudioUpload)
	router.HandleFunc("POST /upload-video", s.handleVideoUpload)
	return s
}

// Handler returns the request router, for embedding in tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return nil, err
	}
	if s.opts.MaxConnections > 0 {
		l = netutil.LimitListener(l, s.opts.MaxConnections)
	}
	return l, nil
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	log.Info("Listening on http://%s/", displayAddr(l.Addr()))
	if err := s.http.Serve(l); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and ends every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	// Hijacked websocket connections are not tracked by http.Server.
	return s.http.Shutdown(ctx)
}

func displayAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		if name, err := os.Hostname(); err == nil {
			host = name
			if !strings.Contains(host, ".") {
				host += ".local"
			}
		}
	}
	return net.JoinHostPort(host, port)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()[:8]

	session, release, err := s.recorder.Open(id)
	if err != nil {
		log.Warn("Rejecting stream from %s: %v", r.RemoteAddr, err)
		status := http.StatusInternalServerError
		if errors.Is(err, alohacap.ErrBusy) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	defer release()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(s.opts.MaxMessageSize)

	log.Info("Stream %s connected from %s", id, r.RemoteAddr)
	err = session.Run(s.ctx, &wsReader{conn: ws})

	code, reason := closeStatus(err)
	// Best effort; the peer may already be gone.
	ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason),
		time.Now().Add(closeWriteTimeout))
}

// closeStatus maps the outcome of a session to a websocket close frame.
func closeStatus(err error) (code int, reason string) {
	switch {
	case err == nil:
		return websocket.CloseNormalClosure, ""
	case errors.Is(err, context.Canceled):
		return websocket.CloseGoingAway, "shutting down"
	case errors.Is(err, websocket.ErrReadLimit):
		return websocket.CloseMessageTooBig, "message too big"
	}
	// Control frame payloads are limited to 125 bytes, two of them the code.
	return websocket.CloseUnsupportedData, truncate(err.Error(), 120)
}

func (s *Server) handleBadgeScan(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	// A cut that has swapped must run to completion even if the scanner hangs
	// up, otherwise the snapshot is lost.
	result, err := s.recorder.Cut(context.WithoutCancel(r.Context()), token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, alohacap.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "invalid badge id")
	case errors.Is(err, media.ErrFinalize):
		writeError(w, http.StatusInternalServerError, "finalize failed")
	case errors.Is(err, mux.ErrMuxFailed):
		writeError(w, http.StatusBadGateway, "mux failed")
	default:
		log.Error("Cut %s: %v", token, err)
		writeError(w, http.StatusInternalServerError, "cut failed")
	}
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	result, ok := s.recorder.Lookup(r.PathValue("token"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown badge id")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.recorder.Status())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n - len("...")
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + "..."
}
