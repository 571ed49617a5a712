// Package cmd implements rsocketctl's Cobra command tree: serve, dial, and
// dashboard, all built directly on the rsocket/transport packages rather
// than a REST API client, since rsocketctl drives RSocket connections
// itself instead of talking to an intermediary control plane.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ciychodianda/rsocket-go/cmd/rsocketctl/pkg/config"
)

var (
	cfgFile string
	addr    string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rsocketctl",
	Short: "rsocketctl — dial, serve, and inspect RSocket connections",
	Long: `rsocketctl is an operator-facing tool for the rsocket-go protocol
engine: it can accept RSocket connections as a server, dial out as a
client and issue requests interactively, and render a live dashboard of
a connection's stream table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if addr != "" {
			cfg.Addr = addr
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.rsocketctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen or dial address, overrides config")
}
