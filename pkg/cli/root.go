// Package cli implements the ada command-line interface.
package cli

import "github.com/spf13/cobra"

// Version is the build version, overridden via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "ada",
	Short:         "Dynamic-analysis toolkit for recorded application sessions",
	Long: `ada instruments applications, records sessions (trace, screen, voice),
and serves recorded sessions to tooling over a JSON-RPC query server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
