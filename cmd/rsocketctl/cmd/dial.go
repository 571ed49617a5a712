package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciychodianda/rsocket-go/frame"
	"github.com/ciychodianda/rsocket-go/rsocket"
	"github.com/ciychodianda/rsocket-go/transport"
)

var dialCmd = &cobra.Command{
	Use:   "dial <addr>",
	Short: "Perform SETUP against a peer and drop into an interactive request prompt",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := cfg.Addr
		if len(args) == 1 {
			target = args[0]
		}

		netConn, err := net.Dial("tcp", target)
		if err != nil {
			return fmt.Errorf("dial %s: %w", target, err)
		}
		t := transport.NewTCP(netConn)

		logger, _ := zap.NewDevelopment()
		if logger == nil {
			logger = zap.NewNop()
		}

		setup := frame.SetupPayload{
			Version:           frame.Version{Major: 1, Minor: 0},
			KeepaliveInterval: uint32(cfg.KeepaliveInterval),
			MaxLifetime:       uint32(cfg.MaxLifetime),
			MetadataMimeType:  cfg.MetadataMimeType,
			DataMimeType:      cfg.DataMimeType,
			HonorsLease:       cfg.HonorsLease,
			ResumeToken:       []byte(cfg.ResumeToken),
		}

		conn, err := rsocket.NewClientConnection(t, setup, rsocket.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
		defer conn.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "connected to %s. commands: fnf <text> | rr <text> | stream <text> <n> | channel <text> | metadata-push <text> | quit\n", target)
		return runDialPrompt(cmd, conn)
	},
}

func runDialPrompt(cmd *cobra.Command, conn *rsocket.Connection) error {
	req := conn.Requester()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	ctx := context.Background()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "quit", "exit":
			return nil

		case "fnf":
			if err := req.FireAndForget(ctx, rsocket.NewPayloadData([]byte(arg(fields, 1)))); err != nil {
				fmt.Fprintf(out, "fnf error: %v\n", err)
			}

		case "metadata-push":
			if err := req.MetadataPush(ctx, []byte(arg(fields, 1))); err != nil {
				fmt.Fprintf(out, "metadata-push error: %v\n", err)
			}

		case "rr":
			sink := &printingSink{out: out, label: "rr"}
			if _, err := req.RequestResponse(ctx, rsocket.NewPayloadData([]byte(arg(fields, 1))), sink); err != nil {
				fmt.Fprintf(out, "request-response error: %v\n", err)
			}

		case "stream":
			n := uint32(1)
			if len(fields) > 2 {
				fmt.Sscanf(fields[2], "%d", &n)
			}
			sink := &printingSink{out: out, label: "stream"}
			if _, err := req.RequestStream(ctx, rsocket.NewPayloadData([]byte(arg(fields, 1))), n, sink); err != nil {
				fmt.Fprintf(out, "request-stream error: %v\n", err)
			}

		case "channel":
			sink := &printingSink{out: out, label: "channel"}
			handle, err := req.RequestChannel(ctx, rsocket.NewPayloadData([]byte(arg(fields, 1))), 32, sink)
			if err != nil {
				fmt.Fprintf(out, "request-channel error: %v\n", err)
				continue
			}
			_ = handle.Complete()

		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
	return scanner.Err()
}

func arg(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// printingSink renders inbound stream events to out as they arrive; used
// by the interactive dial prompt in place of a real application sink.
type printingSink struct {
	out   io.Writer
	label string
}

func (s *printingSink) OnNext(p rsocket.Payload, isCompletion bool) {
	suffix := ""
	if isCompletion {
		suffix = " (complete)"
	}
	fmt.Fprintf(s.out, "[%s] %s%s\n", s.label, string(p.Data), suffix)
}
func (s *printingSink) OnComplete()         { fmt.Fprintf(s.out, "[%s] complete\n", s.label) }
func (s *printingSink) OnError(err error)   { fmt.Fprintf(s.out, "[%s] error: %v\n", s.label, err) }
func (s *printingSink) OnCancel()           { fmt.Fprintf(s.out, "[%s] cancelled\n", s.label) }
func (s *printingSink) OnRequestN(n uint32) {}

func init() {
	rootCmd.AddCommand(dialCmd)
}
