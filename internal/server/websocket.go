package server

import (
	"io"
	"net"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/ingest"
)

// wsReader presents a websocket connection as a stream of binary frames.
type wsReader struct {
	conn *websocket.Conn
}

func (r *wsReader) ReadFrame() ([]byte, error) {
	mt, p, err := r.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
			return nil, errors.Wrap(ingest.ErrTransportClosed, err.Error())
		}
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, errors.Errorf("unexpected text message (%d bytes)", len(p))
	}
	return p, nil
}

func (r *wsReader) Close() error {
	return r.conn.Close()
}
