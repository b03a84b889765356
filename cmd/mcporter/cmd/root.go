package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var configPath string

// NewRootCmd creates the root command for mcporter.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mcporter",
		Short: "Local aggregator and keep-alive daemon for MCP servers",
		Long: `mcporter multiplexes access to externally configured MCP servers —
stdio child processes and streaming-HTTP remotes — and keeps long-lived
sessions warm across short-lived foreground invocations via a local daemon.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to mcporter config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
