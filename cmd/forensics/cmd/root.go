// Package cmd defines the forensics command tree, adapted from
// ostafen-digler's cmd/cmd/root.go: one cobra.Command constructor per
// subcommand, assembled here.
package cmd

import "github.com/spf13/cobra"

const appName = "forensics"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: appName + " - block device file recovery and diagnostics",
	}

	rootCmd.AddCommand(
		defineScanCommand(),
		defineRecoverCommand(),
		defineDevicesCommand(),
		defineDiagnosticsCommand(),
		defineFormatsCommand(),
	)

	return rootCmd.Execute()
}
