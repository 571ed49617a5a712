package rsocket

import (
	"time"

	"github.com/ciychodianda/rsocket-go/frame"
	"go.uber.org/zap"
)

// keepaliveLoop sends periodic KEEPALIVE(respond=true) and enforces
// maxLifetime: if no frame has been received from the peer within
// maxLifetime of the last one, the connection is closed with
// CONNECTION_ERROR. An intervalMillis of zero disables the whole loop (no
// KEEPALIVE is sent and maxLifetime is not checked); a lifetimeMillis of
// zero disables only the maxLifetime check. These are per-SETUP values with
// no floor enforced by this layer.
func (c *Connection) keepaliveLoop(intervalMillis, lifetimeMillis uint32) {
	defer c.wg.Done()
	interval := time.Duration(intervalMillis) * time.Millisecond
	maxLifetime := time.Duration(lifetimeMillis) * time.Millisecond
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			last := c.lastInboundAt
			c.mu.Unlock()
			if maxLifetime > 0 && time.Since(last) > maxLifetime {
				c.sendConnectionError(frame.ErrorCodeConnectionError, "peer exceeded maxLifetime")
				return
			}
			if err := c.writeFrame(frame.Frame{
				Header: frame.Header{StreamID: frame.StreamZero, Type: frame.TypeKeepalive, Flags: frame.FlagRespond},
			}); err != nil {
				c.logger.Debug("keepalive write failed", zap.Error(err))
				return
			}
		}
	}
}

// handleKeepaliveFrame answers a respond=true KEEPALIVE with an echo
// carrying the same data and respond=false; a respond=false KEEPALIVE
// (the answer to one of ours) is simply observed via lastInboundAt,
// already updated by readLoop.
func (c *Connection) handleKeepaliveFrame(f frame.Frame) {
	if !f.IsRespond() {
		return
	}
	_ = c.writeFrame(frame.Frame{
		Header: frame.Header{StreamID: frame.StreamZero, Type: frame.TypeKeepalive},
		Data:   f.Data,
	})
}
