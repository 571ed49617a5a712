// Package rsocket implements the RSocket application protocol: a
// symmetric, bidirectional, multiplexed message protocol over a reliable
// byte-stream transport. It owns the connection state machine (SETUP
// handshake, keepalive, GOAWAY/ERROR shutdown), the stream multiplexer and
// demultiplexer, and the per-stream state machines for the four
// interaction models (fire-and-forget, request/response, request/stream,
// request/channel).
//
// The wire codec lives in the sibling frame package; the byte-stream
// transport itself is an external collaborator described by the
// transport.Transport contract in the sibling transport package.
package rsocket
