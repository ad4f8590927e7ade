package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/backend/dummy"
	"github.com/seantiz/qexec/internal/pool"
)

func backendsCmd() *cobra.Command {
	var localOnly, simulatorOnly bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List the available backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filters []backend.Filter
			if cmd.Flags().Changed("local") {
				filters = append(filters, backend.Local(localOnly))
			}
			if cmd.Flags().Changed("simulator") {
				filters = append(filters, backend.Simulator(simulatorOnly))
			}

			logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
			p := pool.New(1, logger)
			defer p.Shutdown(cmd.Context()) //nolint:errcheck // nothing was submitted

			reg, err := newRegistry(p, dummy.DefaultTimeAlive, logger)
			if err != nil {
				return err
			}
			for _, name := range reg.AvailableBackends(filters...) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local", false, "filter on backends that run in-process")
	cmd.Flags().BoolVar(&simulatorOnly, "simulator", false, "filter on simulators")
	return cmd
}
