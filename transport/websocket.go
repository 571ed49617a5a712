package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ciychodianda/rsocket-go/frame"
	"github.com/gorilla/websocket"
)

// WebSocket adapts a *websocket.Conn into a Transport. Unlike TCP, no
// length prefix is applied: a websocket message is already a discrete,
// length-delimited unit, so one frame maps to exactly one binary message.
type WebSocket struct {
	conn *websocket.Conn

	wmu sync.Mutex
	rmu sync.Mutex
}

// NewWebSocket wraps conn. conn is closed by Close.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

func (w *WebSocket) Send(ctx context.Context, f frame.Frame) error {
	body, err := frame.Encode(f)
	if err != nil {
		return fmt.Errorf("transport/websocket: encode: %w", err)
	}

	w.wmu.Lock()
	defer w.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetWriteDeadline(deadline)
		defer func() { _ = w.conn.SetWriteDeadline(time.Time{}) }()
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, body)
}

func (w *WebSocket) Recv(ctx context.Context) (frame.Frame, error) {
	w.rmu.Lock()
	defer w.rmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetReadDeadline(deadline)
		defer func() { _ = w.conn.SetReadDeadline(time.Time{}) }()
	}

	_, body, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return frame.Frame{}, io.EOF
		}
		return frame.Frame{}, err
	}
	f, err := frame.Decode(body)
	if err != nil {
		return frame.Frame{}, err
	}
	return f, nil
}

func (w *WebSocket) Close() error {
	return w.conn.Close()
}
