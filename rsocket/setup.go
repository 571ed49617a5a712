package rsocket

import (
	"fmt"
	"time"

	"github.com/ciychodianda/rsocket-go/frame"
	"go.uber.org/zap"
)

// sendSetup encodes and writes the client's SETUP frame.
func (c *Connection) sendSetup(p frame.SetupPayload) error {
	f := frame.Frame{
		Header: frame.Header{
			StreamID: frame.StreamZero,
			Type:     frame.TypeSetup,
		},
		Version:           p.Version,
		KeepaliveInterval: p.KeepaliveInterval,
		MaxLifetime:       p.MaxLifetime,
		ResumeToken:       p.ResumeToken,
		MetadataMimeType:  p.MetadataMimeType,
		DataMimeType:      p.DataMimeType,
		HasMetadata:       p.HasMetadata,
		Metadata:          p.Metadata,
		Data:              p.Data,
	}
	if len(p.ResumeToken) > 0 {
		f.Header.Flags |= frame.FlagResume
	}
	if p.HasMetadata {
		f.Header.Flags |= frame.FlagMetadata
	}
	if p.HonorsLease {
		f.Header.Flags |= frame.FlagLease
	}
	return c.writeFrame(f)
}

// handleSetupFrame runs the server-side accept pipeline for an inbound
// SETUP: ShouldAcceptClient gates it, then InitializeConnectionFunc runs
// with inbound frames buffered, then the buffer is replayed in order.
func (c *Connection) handleSetupFrame(f frame.Frame) {
	c.mu.Lock()
	if c.state != stateAwaitingSetup {
		c.mu.Unlock()
		// Duplicate/late SETUP is a protocol violation.
		c.sendConnectionError(frame.ErrorCodeInvalidSetup, "duplicate SETUP")
		return
	}
	c.state = stateEstablishing
	c.bufferingSetup = true
	c.mu.Unlock()

	info := frame.NewSetupPayload(f)
	result := c.opts.shouldAcceptClient(info)
	if !result.accepted {
		c.sendSetupError(result.code, result.message)
		_ = c.closeWith(&ErrSetupRejected{Code: result.code, Message: result.message})
		return
	}

	c.mu.Lock()
	c.lastInboundAt = time.Now()
	c.mu.Unlock()

	c.wg.Add(1)
	go c.keepaliveLoop(info.KeepaliveInterval, info.MaxLifetime)

	// initializeConnection may block arbitrarily long. handleSetupFrame
	// runs on the dispatch path holding dispatchMu; running it here would
	// stall readLoop's ability to keep draining the transport into
	// setupQueue for the duration. Finish it on its own goroutine instead,
	// so inbound frames keep arriving and buffering while it's in flight.
	c.wg.Add(1)
	go c.finishSetup(info)
}

// finishSetup runs initializeConnection off the dispatch goroutine and,
// once it resolves, replays whatever dispatch buffered into setupQueue
// while it was in flight, in arrival order.
func (c *Connection) finishSetup(info frame.SetupPayload) {
	defer c.wg.Done()
	err := c.opts.initializeConnection(info, c)

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if err != nil {
		c.logger.Warn("initializeConnection failed", zap.Error(err))
		c.sendSetupError(frame.ErrorCodeRejectedSetup, err.Error())
		_ = c.closeWith(fmt.Errorf("rsocket: initializeConnection: %w", err))
		return
	}

	c.mu.Lock()
	c.state = stateActive
	c.bufferingSetup = false
	queued := c.setupQueue
	c.setupQueue = nil
	c.mu.Unlock()

	for _, qf := range queued {
		c.dispatchLocked(qf)
	}
}

func (c *Connection) sendSetupError(code frame.ErrorCode, message string) {
	_ = c.writeFrame(frame.Frame{
		Header:    frame.Header{StreamID: frame.StreamZero, Type: frame.TypeError},
		ErrorCode: code,
		ErrorData: message,
	})
}

func (c *Connection) sendConnectionError(code frame.ErrorCode, message string) {
	c.sendSetupError(code, message)
	_ = c.closeWith(NewProtocolError(code, message))
}
