package liveclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/spec-kit/logistics-dashboard/internal/protocol"
)

// ErrMalformedFrame marks a frame that could not be decoded; the connection stays usable.
var ErrMalformedFrame = errors.New("malformed frame")

// Conn is a live-update transport connection.
type Conn interface {
	Read(ctx context.Context) (protocol.Message, error)
	Write(ctx context.Context, msg protocol.Message) error
	Close() error
}

// DialFunc opens a connection to url.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// WebsocketDial is the default DialFunc backed by coder/websocket.
func WebsocketDial(ctx context.Context, url string, header http.Header) (Conn, error) {
	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.SetReadLimit(1 << 20)
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) (protocol.Message, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		return protocol.Message{}, err
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		return protocol.Message{}, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(data))
	}
	return msg, nil
}

func (w *wsConn) Write(ctx context.Context, msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "closing")
}

// normalClosure reports whether err is a clean close initiated by either side.
func normalClosure(err error) bool {
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}
