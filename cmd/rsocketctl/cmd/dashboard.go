package cmd

import (
	"fmt"
	"net"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciychodianda/rsocket-go/cmd/rsocketctl/pkg/tui"
	"github.com/ciychodianda/rsocket-go/frame"
	"github.com/ciychodianda/rsocket-go/rsocket"
	"github.com/ciychodianda/rsocket-go/transport"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <addr>",
	Short: "Dial a peer and render a live-updating table of its stream table",
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

		setup := frame.SetupPayload{
			Version:           frame.Version{Major: 1, Minor: 0},
			KeepaliveInterval: uint32(cfg.KeepaliveInterval),
			MaxLifetime:       uint32(cfg.MaxLifetime),
			MetadataMimeType:  cfg.MetadataMimeType,
			DataMimeType:      cfg.DataMimeType,
		}
		conn, err := rsocket.NewClientConnection(t, setup, rsocket.WithLogger(zap.NewNop()))
		if err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
		defer conn.Close()

		p := tea.NewProgram(tui.New(conn, target), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
