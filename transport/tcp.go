package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ciychodianda/rsocket-go/frame"
)

// maxFrameLength is the largest frame a 24-bit big-endian length prefix
// can carry. Each frame on the wire is preceded by this 3-byte length
// field, read with io.ReadFull against the declared length.
const maxFrameLength = 1<<24 - 1

// TCP adapts a net.Conn (or anything satisfying the same io.ReadWriteCloser
// shape) into a Transport by installing a length-prefixed framer. One TCP
// wraps one connection; Send and Recv may be called concurrently with each
// other (each locks its own half of the connection) but not with themselves.
type TCP struct {
	conn net.Conn

	wmu sync.Mutex
	rmu sync.Mutex
	// rbuf amortizes the header read across calls to Recv.
	rbuf [3]byte
}

// NewTCP wraps conn. conn is closed by Close.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{conn: conn}
}

func (t *TCP) Send(ctx context.Context, f frame.Frame) error {
	body, err := frame.Encode(f)
	if err != nil {
		return fmt.Errorf("transport/tcp: encode: %w", err)
	}
	if len(body) > maxFrameLength {
		return fmt.Errorf("transport/tcp: frame of %d bytes exceeds 24-bit length prefix", len(body))
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
		defer func() { _ = t.conn.SetWriteDeadline(time.Time{}) }()
	}

	var hdr [3]byte
	n := len(body)
	hdr[0], hdr[1], hdr[2] = byte(n>>16), byte(n>>8), byte(n)
	if _, err := t.conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("transport/tcp: write length prefix: %w", err)
	}
	if _, err := t.conn.Write(body); err != nil {
		return fmt.Errorf("transport/tcp: write frame body: %w", err)
	}
	return nil
}

func (t *TCP) Recv(ctx context.Context) (frame.Frame, error) {
	t.rmu.Lock()
	defer t.rmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
		defer func() { _ = t.conn.SetReadDeadline(time.Time{}) }()
	}

	if _, err := io.ReadFull(t.conn, t.rbuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return frame.Frame{}, err
	}
	n := int(t.rbuf[0])<<16 | int(t.rbuf[1])<<8 | int(t.rbuf[2])
	body := make([]byte, n)
	if _, err := io.ReadFull(t.conn, body); err != nil {
		return frame.Frame{}, fmt.Errorf("transport/tcp: read frame body: %w", err)
	}
	f, err := frame.Decode(body)
	if err != nil {
		return frame.Frame{}, err
	}
	return f, nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}
