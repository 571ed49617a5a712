package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciychodianda/rsocket-go/frame"
	"github.com/ciychodianda/rsocket-go/rsocket"
	"github.com/ciychodianda/rsocket-go/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept RSocket connections and echo every request back to the peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Addr, err)
		}
		defer ln.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "rsocketctl serve: listening on %s\n", ln.Addr())

		logger, err := zap.NewDevelopment()
		if err != nil {
			logger = zap.NewNop()
		}
		defer logger.Sync()

		for {
			conn, err := ln.Accept()
			if err != nil {
				return fmt.Errorf("accept: %w", err)
			}
			go serveConn(conn, logger)
		}
	},
}

func serveConn(netConn net.Conn, logger *zap.Logger) {
	t := transport.NewTCP(netConn)
	srv := rsocket.NewServerConnection(t,
		rsocket.WithLogger(logger),
		rsocket.WithShouldAcceptClient(func(info frame.SetupPayload) rsocket.AcceptResult {
			return rsocket.Accept()
		}),
		rsocket.WithInitializeConnection(func(info frame.SetupPayload, conn *rsocket.Connection) error {
			conn.SetResponder(echoResponder{})
			return nil
		}),
	)
	<-srv.Done()
}

// echoResponder answers every request by handing the request payload back
// to the peer, so rsocketctl serve is useful for manual protocol
// conformance checks against rsocketctl dial without a bespoke server.
type echoResponder struct{}

func (echoResponder) HandleFireAndForget(context.Context, rsocket.Payload) {}

func (echoResponder) HandleRequestResponse(_ context.Context, req rsocket.Payload, sink rsocket.Sink) {
	sink.OnNext(req, true)
}

func (echoResponder) HandleRequestStream(_ context.Context, req rsocket.Payload, initialRequestN uint32, sink rsocket.Sink) {
	sink.OnNext(req, true)
}

func (echoResponder) HandleRequestChannel(_ context.Context, req rsocket.Payload, initialRequestN uint32, outbound rsocket.Sink) rsocket.Sink {
	outbound.OnNext(req, false)
	return echoChannelSink{outbound: outbound}
}

func (echoResponder) HandleMetadataPush(context.Context, []byte) {}

// echoChannelSink mirrors the peer's channel payloads back onto outbound.
type echoChannelSink struct {
	outbound rsocket.Sink
}

func (s echoChannelSink) OnNext(p rsocket.Payload, isCompletion bool) {
	s.outbound.OnNext(p, isCompletion)
}
func (s echoChannelSink) OnComplete()       { s.outbound.OnComplete() }
func (s echoChannelSink) OnError(err error) { s.outbound.OnError(err) }
func (s echoChannelSink) OnCancel()         { s.outbound.OnCancel() }
func (s echoChannelSink) OnRequestN(n uint32) {}

func init() {
	rootCmd.AddCommand(serveCmd)
}
