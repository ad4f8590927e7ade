// Command qexec runs quantum workloads on execution backends.
//
// Subcommands:
//
//	serve     HTTP API, execution pool and job journal
//	backends  list the available backends
//	run       submit one workload in-process and print its result
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qexec",
		Short: "qexec executes quantum workloads asynchronously",
		// Errors are logged by main.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		serveCmd(),
		backendsCmd(),
		runCmd(),
	)
	return root
}
